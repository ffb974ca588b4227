package repo

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmined/gitcrate/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// bookkeeping files that must never be synced as content
var bookkeepingFiles = []string{MarkerFile, LockFile}

// EnsureIgnored appends to dir's ignore file every name it does not already
// ignore and returns the names it added.
func EnsureIgnored(dir string, names ...string) ([]string, error) {
	path := filepath.Join(dir, IgnoreFile)

	lines, err := readIgnoreLines(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	matcher := gitignore.CompileIgnoreLines(lines...)

	var missing []string
	for _, name := range names {
		if !matcher.MatchesPath(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	if err := utils.AppendLines(path, missing...); err != nil {
		return nil, fmt.Errorf("update %s: %w", path, err)
	}
	return missing, nil
}

func readIgnoreLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
