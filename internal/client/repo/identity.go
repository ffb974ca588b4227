package repo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/openmined/gitcrate/internal/vcs"
	"github.com/shirou/gopsutil/v4/host"
)

const (
	clientIDPrefix   = "gitcrate"
	clientIDSuffixN  = 5
	clientIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	unknownHost      = "unknown"
	machineIDLen     = 8
)

// Hostname returns a ref-safe name for this machine. A host without a name
// is identified by a prefix of its app-scoped machine id.
func Hostname(ctx context.Context) string {
	name := ""
	if info, err := host.InfoWithContext(ctx); err == nil {
		name = info.Hostname
	}
	if name == "" {
		name, _ = os.Hostname()
	}
	if name == "" {
		if id, err := machineid.ProtectedID(clientIDPrefix); err == nil && len(id) >= machineIDLen {
			name = id[:machineIDLen]
		}
	}
	return sanitizeHostname(name)
}

// NewClientID returns gitcrate-<hostname>-<5 random lowercase alphanumerics>
func NewClientID(hostname string) string {
	var suffix strings.Builder
	for range clientIDSuffixN {
		suffix.WriteByte(clientIDAlphabet[rand.IntN(len(clientIDAlphabet))])
	}
	return fmt.Sprintf("%s-%s-%s", clientIDPrefix, sanitizeHostname(hostname), suffix.String())
}

// ConfigureClientID generates a client id, persists it in the repository's
// local config and returns it. No uniqueness check against the remote is made.
func ConfigureClientID(ctx context.Context, backend vcs.Backend, hostname string) (string, error) {
	id := NewClientID(hostname)
	if err := backend.ConfigSet(ctx, ClientIDKey, id); err != nil {
		return "", fmt.Errorf("persist client id: %w", err)
	}
	return id, nil
}

// AlignClientRef points the client reference at the local mainline tip.
// Local only, no network I/O.
func AlignClientRef(ctx context.Context, backend vcs.Backend, clientID string) error {
	if err := backend.UpdateRef(ctx, clientRef(clientID), Mainline); err != nil {
		return fmt.Errorf("align %s to %s: %w", clientID, Mainline, err)
	}
	return nil
}

// sanitizeHostname keeps [a-z0-9-] so the id is a valid ref name
func sanitizeHostname(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}

	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
			b.WriteRune(c)
		default:
			b.WriteByte('-')
		}
	}

	out := strings.Trim(b.String(), "-")
	if out == "" {
		return unknownHost
	}
	return out
}
