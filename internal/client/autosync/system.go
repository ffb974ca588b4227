package autosync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// SystemCrontab drives the crontab binary
type SystemCrontab struct{}

func (SystemCrontab) Read(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "crontab", "-l").Output()
	if err != nil {
		return "", fmt.Errorf("crontab -l: %w", err)
	}
	return string(out), nil
}

func (SystemCrontab) Write(ctx context.Context, content string) error {
	f, err := os.CreateTemp("", "gitcrate-crontab-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "crontab", f.Name())
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("crontab: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// SystemLocales runs `locale -a`
type SystemLocales struct{}

func (SystemLocales) List(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "locale", "-a").Output()
	if err != nil {
		return nil, fmt.Errorf("locale -a: %w", err)
	}
	return strings.Fields(string(out)), nil
}
