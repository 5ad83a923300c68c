package models

import "time"

type AttemptOutcome string

const (
	OutcomeSuccess   AttemptOutcome = "success"
	OutcomeTimeout   AttemptOutcome = "timeout"
	OutcomeError     AttemptOutcome = "error"
	OutcomeMalformed AttemptOutcome = "malformed"
)

type ProviderRole string

const (
	RolePrimary  ProviderRole = "primary"
	RoleFallback ProviderRole = "fallback"
)

// DispatchAttempt records a single provider call. It is logged and counted,
// never persisted.
type DispatchAttempt struct {
	Task      TaskType       `json:"task"`
	Provider  string         `json:"provider"`
	Role      ProviderRole   `json:"role"`
	Attempt   int            `json:"attempt"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Outcome   AttemptOutcome `json:"outcome"`
	Detail    string         `json:"detail,omitempty"`
}

func (a DispatchAttempt) Latency() time.Duration {
	return a.EndedAt.Sub(a.StartedAt)
}
