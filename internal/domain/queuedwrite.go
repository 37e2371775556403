package domain

import (
	"encoding/json"
	"time"
)

// QueuedWrite is one pending durable operation. Items leave the queue only
// on confirmed success or after the retry ceiling is exceeded, and in the
// latter case the failure is always surfaced, never silently dropped.
type QueuedWrite struct {
	ID            string          `json:"id"`
	Target        TargetKind      `json:"target"`
	Op            OperationKind   `json:"op"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	AttemptCount  int             `json:"attempt_count"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	LastError     string          `json:"last_error,omitempty"`
}
