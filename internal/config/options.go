// Package config provides configuration types for the codex SDK.
package config

import (
	"log/slog"
	"time"

	"github.com/agentwire/codex-sdk-go/internal/tool"
)

// Options holds the full session configuration. Public functional options at
// the repository root apply onto this struct.
type Options struct {
	// Logger receives debug/info/warn/error output. Nil disables logging.
	Logger *slog.Logger

	// CodexPath is an explicit path to the codex binary. If empty, the
	// binary is discovered on PATH and in common install directories.
	CodexPath string

	// Cwd is the working directory for the child process.
	Cwd string

	// Env holds extra environment variables ("KEY=value") appended to the
	// inherited environment.
	Env []string

	// ClientName and ClientVersion identify this client in the initialize
	// handshake.
	ClientName    string
	ClientVersion string

	// AutoApprove answers command-execution and file-change approval
	// requests with accept instead of decline.
	AutoApprove bool

	// Tools are in-process tools answering item/tool/call requests,
	// keyed by tool name.
	Tools map[string]*tool.Tool

	// InitializeTimeout bounds the initialize handshake request.
	InitializeTimeout *time.Duration

	// Transport overrides the subprocess transport. Used by tests.
	Transport Transport
}
