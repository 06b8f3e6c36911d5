package codexsdk

import "github.com/agentwire/codex-sdk-go/internal/config"

// Re-export configuration and result types from internal package.

// TurnStatus is the terminal status of a turn.
type TurnStatus = config.TurnStatus

// Terminal turn statuses.
const (
	// TurnCompleted means the turn finished normally.
	TurnCompleted = config.TurnCompleted

	// TurnFailed means the turn ended with a non-success status.
	// The failure message is in TurnResult.Error.
	TurnFailed = config.TurnFailed

	// TurnInterrupted means the turn was interrupted before completion.
	TurnInterrupted = config.TurnInterrupted
)

// TurnResult is the outcome of one turn. A failed turn is encoded here as
// data, not as an error return: callers must inspect Status.
type TurnResult = config.TurnResult

// ThreadConfig configures thread/start and thread/resume. All fields are
// optional; nil fields are omitted on the wire.
type ThreadConfig = config.ThreadConfig

// TurnOptions configures a single turn, including per-turn overrides and
// an optional timeout.
type TurnOptions = config.TurnOptions

// Ptr returns a pointer to v, for filling optional config fields inline.
func Ptr[T any](v T) *T {
	return &v
}
