package git

import (
	"strings"

	"github.com/openmined/gitcrate/internal/vcs"
)

// git reports most outcomes only through its messages; LC_ALL=C keeps them stable
var (
	conflictMarkers = []string{
		"CONFLICT",
		"Automatic merge failed",
		"fix conflicts",
		"unmerged files",
	}

	rejectedMarkers = []string{
		"[rejected]",
		"non-fast-forward",
		"fetch first",
		"Updates were rejected",
		"[remote rejected]",
	}

	transportMarkers = []string{
		"Could not read from remote repository",
		"does not appear to be a git repository",
		"unable to access",
		"Could not resolve host",
		"Connection refused",
		"Connection timed out",
		"Operation timed out",
		"Network is unreachable",
		"unable to connect",
		"the remote end hung up unexpectedly",
	}
)

// classify maps a failed git invocation to one of the vcs outcome sentinels.
// Returns nil when the failure does not match a known outcome.
func classify(args []string, exitCode int, output string) error {
	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "config":
		// git config --get exits 1 when the key is missing
		if exitCode == 1 {
			return vcs.ErrNotFound
		}
	case "merge":
		if containsAny(output, conflictMarkers) {
			return vcs.ErrConflict
		}
	case "push":
		if containsAny(output, rejectedMarkers) {
			return vcs.ErrRejected
		}
		if containsAny(output, transportMarkers) {
			return vcs.ErrTransport
		}
	case "fetch", "ls-remote":
		if containsAny(output, transportMarkers) {
			return vcs.ErrTransport
		}
	case "checkout", "update-ref":
		if strings.Contains(output, "not a valid") || strings.Contains(output, "unknown revision") ||
			strings.Contains(output, "invalid reference") {
			return vcs.ErrNotFound
		}
	}
	return nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
