package config

import (
	"context"

	"github.com/agentwire/codex-sdk-go/internal/rpc"
)

// Transport defines the interface for app server communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementation is subprocess.AppServerTransport which spawns
// `codex app-server` as a child process.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	Start(ctx context.Context) error

	// ReadMessages returns channels for receiving messages and errors.
	// The message channel yields decoded wire messages; malformed lines
	// are dropped before this point. Both channels are closed when
	// reading completes.
	ReadMessages(ctx context.Context) (<-chan *rpc.Message, <-chan error)

	// SendMessage writes one message as a single newline-terminated JSON
	// line. It must be safe for concurrent use; a message is never split
	// across two lines.
	SendMessage(ctx context.Context, msg *rpc.Message) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}
