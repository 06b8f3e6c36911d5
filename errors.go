package codexsdk

import "github.com/agentwire/codex-sdk-go/internal/errors"

// Re-export error types from internal package

// CodexSDKError is the base interface for all SDK errors.
type CodexSDKError = errors.CodexSDKError

// CodexNotFoundError indicates the codex binary was not found.
type CodexNotFoundError = errors.CodexNotFoundError

// ConnectionError indicates failure to connect to the app server process.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the app server process exited abnormally.
type ProcessError = errors.ProcessError

// StartupError indicates the initialize handshake failed.
type StartupError = errors.StartupError

// ContractError indicates a successful response was missing an expected
// field (e.g. no thread id in a thread/start result).
type ContractError = errors.ContractError

// RPCError indicates the app server answered a request with a JSON-RPC
// error.
type RPCError = errors.RPCError

// TurnTimeoutError indicates a turn produced no terminal event within its
// configured window.
type TurnTimeoutError = errors.TurnTimeoutError

// Re-export sentinel errors from internal package.
var (
	// ErrNotStarted indicates the session has not been started.
	ErrNotStarted = errors.ErrNotStarted

	// ErrSessionClosed indicates the session has been stopped.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected
)
