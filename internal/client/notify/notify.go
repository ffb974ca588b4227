// Package notify tells a human that a repository was quarantined.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"github.com/openmined/gitcrate/internal/utils"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	ErrKeyMissing           = errors.New("sendgrid api key is not set")
	ErrInvalidMailSender    = errors.New("invalid mail sender")
	ErrInvalidMailRecipient = errors.New("invalid mail recipient")
)

// Notifier is told about every repository a sync quarantined
type Notifier interface {
	Quarantined(ctx context.Context, path, clientID string, cause error) error
}

type Config struct {
	Enabled        bool   `mapstructure:"enabled"`
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	From           string `mapstructure:"from"`
	To             string `mapstructure:"to"`
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", c.Enabled),
		slog.String("sendgrid_api_key", utils.MaskSecret(c.SendgridAPIKey)),
		slog.String("from", c.From),
		slog.String("to", c.To),
	)
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SendgridAPIKey == "" {
		return ErrKeyMissing
	}
	if err := utils.ValidateEmail(c.From); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMailSender, err)
	}
	if err := utils.ValidateEmail(c.To); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMailRecipient, err)
	}
	return nil
}

// New returns a sendgrid notifier, or Nop when notifications are disabled
func New(cfg Config) (Notifier, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SendgridNotifier{cfg: cfg, client: sendgrid.NewSendClient(cfg.SendgridAPIKey)}, nil
}

// Nop drops every notification
type Nop struct{}

func (Nop) Quarantined(ctx context.Context, path, clientID string, cause error) error {
	return nil
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendgridNotifier mails the configured recipient through sendgrid
type SendgridNotifier struct {
	cfg    Config
	client sendClient
}

func (n *SendgridNotifier) Quarantined(ctx context.Context, path, clientID string, cause error) error {
	from := mail.NewEmail("gitcrate", n.cfg.From)
	to := mail.NewEmail(n.cfg.To, n.cfg.To)
	subject := fmt.Sprintf("gitcrate: %s needs a manual merge", path)

	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}
	body := fmt.Sprintf(
		"<p>Automatic sync of <code>%s</code> (client <code>%s</code>) stopped: %s</p>"+
			"<p>Merge the remote mainline by hand, commit, then delete <code>CONFLICT_MUST_MANUALLY_MERGE</code> to resume syncing.</p>",
		html.EscapeString(path), html.EscapeString(clientID), html.EscapeString(reason),
	)

	message := mail.NewSingleEmail(from, subject, to, "", body)
	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send quarantine notice: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("send quarantine notice: sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}

	slog.Debug("quarantine notice sent", "repo", path, "to", n.cfg.To, "status", resp.StatusCode, "messageId", resp.Headers["X-Message-Id"])
	return nil
}
