package utils

// MaskSecret keeps a short prefix of s for recognition and hides the rest
func MaskSecret(s string) string {
	const keep = 4
	if len(s) <= keep {
		return "*****"
	}
	return s[:keep] + "*****"
}
