package config

import "time"

// TurnStatus is the terminal status of a turn.
type TurnStatus string

const (
	// TurnCompleted means the turn finished normally.
	TurnCompleted TurnStatus = "completed"

	// TurnFailed means the turn ended with a non-success status.
	TurnFailed TurnStatus = "failed"

	// TurnInterrupted means the turn was interrupted before completion.
	TurnInterrupted TurnStatus = "interrupted"
)

// TurnResult is the outcome of one turn. A failed turn is encoded here as
// data, not as an error return: callers must inspect Status.
type TurnResult struct {
	Status     TurnStatus `json:"status"`
	OutputText string     `json:"outputText,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ThreadConfig configures thread/start and thread/resume. All fields are
// nullable on the wire; nil fields are omitted.
type ThreadConfig struct {
	Model          *string        `json:"model,omitempty"`
	Provider       *string        `json:"provider,omitempty"`
	Cwd            *string        `json:"cwd,omitempty"`
	ApprovalPolicy *string        `json:"approvalPolicy,omitempty"`
	SandboxMode    *string        `json:"sandboxMode,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
	Instructions   *string        `json:"instructions,omitempty"`
	Personality    *string        `json:"personality,omitempty"`
}

// TurnOptions configures a single turn/start.
type TurnOptions struct {
	// Model, Effort, Summary, and ApprovalPolicy override the thread's
	// settings for this turn only.
	Model          *string
	Effort         *string
	Summary        *string
	ApprovalPolicy *string

	// Timeout bounds the wait for the turn's terminal event. Zero means
	// wait indefinitely. On expiry the turn is abandoned locally; no
	// interrupt is sent upstream.
	Timeout time.Duration
}
