package codexsdk

import (
	"context"

	internalclient "github.com/agentwire/codex-sdk-go/internal/client"
)

// Client supervises one codex app server process and exposes the
// thread/turn API on top of it.
//
// The underlying process is spawned lazily: the first operation (or an
// explicit Start) spawns it and performs the handshake. Start is
// idempotent and safe for concurrent use; concurrent callers of an
// in-flight start all await the same attempt. After Close, a later Start
// re-spawns cleanly.
//
// Example usage:
//
//	client := codexsdk.NewClient()
//	defer client.Close()
//
//	threadID, err := client.StartThread(ctx, &codexsdk.ThreadConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.RunTurn(ctx, threadID, "Hello", nil)
type Client interface {
	// Start spawns the app server and performs the startup handshake.
	// Idempotent; returns a StartupError if the handshake fails.
	Start(ctx context.Context) error

	// StartThread starts a new persistent thread and returns its id.
	// A nil config uses the app server's defaults.
	StartThread(ctx context.Context, cfg *ThreadConfig) (string, error)

	// ResumeThread resumes an existing thread the app server retains.
	ResumeThread(ctx context.Context, threadID string, cfg *ThreadConfig) (string, error)

	// RunTurn submits one text input to a thread and waits for the
	// turn's terminal result. A failed turn is reported in the result's
	// Status, not as an error; see TurnResult.
	RunTurn(ctx context.Context, threadID, text string, opts *TurnOptions) (*TurnResult, error)

	// InterruptTurn asks the app server to interrupt an in-flight turn.
	// The interrupted turn still resolves through its RunTurn call.
	InterruptTurn(ctx context.Context, threadID, turnID string) error

	// Close stops the session and terminates the app server process.
	// Safe to call multiple times.
	Close() error
}

// NewClient creates a client with the given options. The app server is not
// spawned until the first operation.
func NewClient(opts ...Option) Client {
	return internalclient.New(applyOptions(opts))
}

// WithClient manages client lifecycle with automatic cleanup.
//
// This helper creates a client, starts it, executes the callback, and
// closes the client when done. If Close fails, a warning is logged but
// does not override the callback's error.
func WithClient(ctx context.Context, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	client := NewClient(opts...)
	if err := client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Warn("failed to close client", "error", closeErr)
		}
	}()

	return fn(client)
}
