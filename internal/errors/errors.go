package errors

import (
	"errors"
	"fmt"
)

// CodexSDKError is the base interface for all SDK errors.
type CodexSDKError interface {
	error
	IsCodexSDKError() bool
}

// Compile-time verification that all error types implement CodexSDKError.
var (
	_ CodexSDKError = (*CodexNotFoundError)(nil)
	_ CodexSDKError = (*ConnectionError)(nil)
	_ CodexSDKError = (*ProcessError)(nil)
	_ CodexSDKError = (*StartupError)(nil)
	_ CodexSDKError = (*ContractError)(nil)
	_ CodexSDKError = (*RPCError)(nil)
	_ CodexSDKError = (*TurnTimeoutError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotStarted indicates the session has not been started.
	ErrNotStarted = errors.New("session not started")

	// ErrSessionClosed indicates the session has been stopped.
	ErrSessionClosed = errors.New("session closed")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrStdinClosed indicates the child's input stream was closed.
	ErrStdinClosed = errors.New("stdin closed")
)

// CodexNotFoundError indicates the codex binary was not found.
type CodexNotFoundError struct {
	SearchedPaths []string
}

func (e *CodexNotFoundError) Error() string {
	return fmt.Sprintf("codex binary not found in: %v", e.SearchedPaths)
}

// IsCodexSDKError implements CodexSDKError.
func (e *CodexNotFoundError) IsCodexSDKError() bool { return true }

// ConnectionError indicates failure to connect to the app server process.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to codex app server: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsCodexSDKError implements CodexSDKError.
func (e *ConnectionError) IsCodexSDKError() bool { return true }

// ProcessError indicates the app server process exited abnormally.
type ProcessError struct {
	ExitCode int
	Err      error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("codex app server exited (code %d): %v", e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsCodexSDKError implements CodexSDKError.
func (e *ProcessError) IsCodexSDKError() bool { return true }

// StartupError indicates the initialize handshake failed.
type StartupError struct {
	Reason string
	Err    error
}

func (e *StartupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codex startup failed: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("codex startup failed: %s", e.Reason)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// IsCodexSDKError implements CodexSDKError.
func (e *StartupError) IsCodexSDKError() bool { return true }

// ContractError indicates a successful response was missing an expected field.
type ContractError struct {
	Method string
	Field  string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s response missing %s", e.Method, e.Field)
}

// IsCodexSDKError implements CodexSDKError.
func (e *ContractError) IsCodexSDKError() bool { return true }

// RPCError indicates the app server answered a request with a JSON-RPC error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("codex request failed (code %d)", e.Code)
	}

	return e.Message
}

// IsCodexSDKError implements CodexSDKError.
func (e *RPCError) IsCodexSDKError() bool { return true }

// TurnTimeoutError indicates a turn produced no terminal event within its window.
type TurnTimeoutError struct {
	TurnID  string
	Timeout string
}

func (e *TurnTimeoutError) Error() string {
	return fmt.Sprintf("turn %s timed out after %s", e.TurnID, e.Timeout)
}

// IsCodexSDKError implements CodexSDKError.
func (e *TurnTimeoutError) IsCodexSDKError() bool { return true }
