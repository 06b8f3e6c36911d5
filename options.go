package codexsdk

import (
	"log/slog"
	"time"

	"github.com/agentwire/codex-sdk-go/internal/config"
	"github.com/agentwire/codex-sdk-go/internal/tool"
)

// Option configures the client using the functional options pattern.
type Option func(*config.Options)

// applyOptions applies functional options to a fresh config.Options.
func applyOptions(opts []Option) *config.Options {
	options := &config.Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *config.Options) {
		o.Logger = logger
	}
}

// WithCodexPath sets an explicit path to the codex binary, skipping
// discovery on PATH and in common install directories.
func WithCodexPath(path string) Option {
	return func(o *config.Options) {
		o.CodexPath = path
	}
}

// WithCwd sets the working directory for the app server process.
func WithCwd(cwd string) Option {
	return func(o *config.Options) {
		o.Cwd = cwd
	}
}

// WithEnv appends extra environment variables ("KEY=value") for the app
// server process. Entries override the inherited environment.
func WithEnv(env ...string) Option {
	return func(o *config.Options) {
		o.Env = append(o.Env, env...)
	}
}

// WithClientInfo sets the client identity sent in the initialize
// handshake.
func WithClientInfo(name, version string) Option {
	return func(o *config.Options) {
		o.ClientName = name
		o.ClientVersion = version
	}
}

// WithAutoApprove answers command-execution and file-change approval
// requests with accept instead of the default decline.
func WithAutoApprove() Option {
	return func(o *config.Options) {
		o.AutoApprove = true
	}
}

// WithTool registers an in-process tool. The tool is advertised during the
// handshake and answers item/tool/call requests for its name.
func WithTool(t *Tool) Option {
	return func(o *config.Options) {
		if o.Tools == nil {
			o.Tools = make(map[string]*tool.Tool, 4)
		}

		o.Tools[t.Name] = t
	}
}

// WithInitializeTimeout bounds the initialize handshake request.
func WithInitializeTimeout(timeout time.Duration) Option {
	return func(o *config.Options) {
		o.InitializeTimeout = &timeout
	}
}

// WithTransport injects a custom transport, replacing the subprocess
// transport. Used for testing and alternative communication methods.
func WithTransport(transport Transport) Option {
	return func(o *config.Options) {
		o.Transport = transport
	}
}
