// Package autosync installs a crontab entry that runs a batch sync of all
// tracked repositories every five minutes.
package autosync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/openmined/gitcrate/internal/utils"
)

const (
	BlockStart = "# gitcrate sync cronjob start"
	BlockEnd   = "# gitcrate sync cronjob end"

	schedule      = "*/5 * * * *"
	batchCommand  = "sync-all-tracked"
	preferredLang = "C.UTF-8"
)

var (
	ErrNoUTF8Locale  = errors.New("no UTF-8 locale installed")
	ErrNotExecutable = errors.New("not an executable file")
)

var (
	blockPattern       = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(BlockStart) + `.*?` + regexp.QuoteMeta(BlockEnd) + `\n?`)
	utf8LocalePattern  = regexp.MustCompile(`(?i)\.utf-?8$`)
	shellUnsafePattern = regexp.MustCompile(`[^A-Za-z0-9_@%+=:,./-]`)
)

// Crontab reads and replaces the current user's crontab
type Crontab interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, content string) error
}

// Locales lists the locales installed on the host
type Locales interface {
	List(ctx context.Context) ([]string, error)
}

type Installer struct {
	crontab Crontab
	locales Locales
}

func NewInstaller(crontab Crontab, locales Locales) *Installer {
	return &Installer{crontab: crontab, locales: locales}
}

// NewSystemInstaller drives the crontab and locale binaries of the host
func NewSystemInstaller() *Installer {
	return NewInstaller(&SystemCrontab{}, &SystemLocales{})
}

// Enable installs or replaces the gitcrate block so that executable runs a
// batch sync every five minutes. Running it again never duplicates the block.
func (i *Installer) Enable(ctx context.Context, executable string) error {
	if !utils.FileExists(executable) || !utils.CanExecute(executable) {
		return fmt.Errorf("%w: %s", ErrNotExecutable, executable)
	}

	installed, err := i.locales.List(ctx)
	if err != nil {
		return fmt.Errorf("list locales: %w", err)
	}
	lang, err := PickLocale(installed)
	if err != nil {
		return err
	}

	current, err := i.crontab.Read(ctx)
	if err != nil {
		// no crontab yet
		slog.Debug("crontab read failed, starting empty", "error", err)
		current = ""
	}

	if err := i.crontab.Write(ctx, Render(current, executable, lang)); err != nil {
		return fmt.Errorf("install crontab: %w", err)
	}

	slog.Info("autosync enabled", "executable", executable, "schedule", schedule, "lang", lang)
	return nil
}

// Render returns current with any previous gitcrate block replaced by a new one
func Render(current, executable, lang string) string {
	out := blockPattern.ReplaceAllString(current, "")
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}

	var b strings.Builder
	b.WriteString(out)
	b.WriteString(BlockStart + "\n")
	fmt.Fprintf(&b, "%s LANG=%s %s %s\n", schedule, shellQuote(lang), shellQuote(executable), batchCommand)
	b.WriteString(BlockEnd + "\n")
	return b.String()
}

// PickLocale prefers C.UTF-8 and otherwise takes the first UTF-8 locale
func PickLocale(installed []string) (string, error) {
	var fallback string
	for _, l := range installed {
		l = strings.TrimSpace(l)
		if !utf8LocalePattern.MatchString(l) {
			continue
		}
		if strings.EqualFold(l, preferredLang) || strings.EqualFold(l, "C.utf8") {
			return l, nil
		}
		if fallback == "" {
			fallback = l
		}
	}
	if fallback == "" {
		return "", ErrNoUTF8Locale
	}
	return fallback, nil
}

func shellQuote(s string) string {
	if s != "" && !shellUnsafePattern.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
