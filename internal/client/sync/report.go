package sync

import (
	"log/slog"
	"time"
)

// Attempt records one round of fetch, commit, merge and push
type Attempt struct {
	N       int
	Outcome Outcome
	Err     error
}

// Report describes a finished sync run
type Report struct {
	RunID     string
	Path      string
	ClientID  string
	State     State
	Attempts  []Attempt
	StartedAt time.Time
	Duration  time.Duration
	Err       error

	// Committed is set when local changes were captured in an automatic commit
	Committed bool

	// Transitions lists every state the machine entered, in order
	Transitions []State
}

func (r *Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("run", r.RunID),
		slog.String("repo", r.Path),
		slog.String("state", string(r.State)),
		slog.Int("attempts", len(r.Attempts)),
		slog.Duration("took", r.Duration),
	}
	if r.Err != nil {
		attrs = append(attrs, slog.String("error", r.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}
