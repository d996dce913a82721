package app

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Invocation tracks one CLI command for the lifetime of the app. Its RunID
// tags every log line written during the command.
type Invocation struct {
	Command   string
	RunID     string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewInvocation creates an invocation for command starting at now.
func NewInvocation(command string, now time.Time) *Invocation {
	return &Invocation{
		Command:   command,
		RunID:     ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		StartedAt: now,
		Status:    "success",
	}
}

// Fail marks the invocation as failed.
func (inv *Invocation) Fail() {
	inv.Status = "error"
}

// Elapsed returns how long the invocation has run as of now.
func (inv *Invocation) Elapsed(now time.Time) time.Duration {
	return now.Sub(inv.StartedAt)
}
