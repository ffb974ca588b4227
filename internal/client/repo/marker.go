package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/openmined/gitcrate/internal/utils"
)

func (r *Repository) MarkerPath() string {
	return filepath.Join(r.Path, MarkerFile)
}

// Quarantined reports whether the conflict marker is present
func (r *Repository) Quarantined() bool {
	return utils.FileExists(r.MarkerPath())
}

// Quarantine writes the zero-byte conflict marker. Only the operator removes it.
func (r *Repository) Quarantine() error {
	f, err := os.OpenFile(r.MarkerPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("write conflict marker: %w", err)
	}
	return f.Close()
}
