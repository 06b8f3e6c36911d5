// Package client wires the subprocess transport and the protocol session
// into the public codex client.
package client

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/agentwire/codex-sdk-go/internal/config"
	"github.com/agentwire/codex-sdk-go/internal/errors"
	"github.com/agentwire/codex-sdk-go/internal/protocol"
	"github.com/agentwire/codex-sdk-go/internal/subprocess"
)

// Client supervises one codex app server process and exposes the
// thread/turn API on top of it.
//
// Start is idempotent: a started client returns immediately, and
// concurrent callers of an in-flight start all await the same attempt, so
// the process is never spawned twice. After Close, a later Start re-spawns
// cleanly.
type Client struct {
	log     *slog.Logger
	options *config.Options

	// starts collapses concurrent Start calls into one attempt.
	starts singleflight.Group

	mu        sync.Mutex
	started   bool
	transport config.Transport
	session   *protocol.Session
	runCancel context.CancelFunc
}

// New creates an unstarted client with the given configuration.
func New(options *config.Options) *Client {
	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		log:     log.With("component", "client"),
		options: options,
	}
}

// Start spawns the app server and performs the startup handshake.
//
// If the client is already started this returns immediately. If a start is
// already underway, all callers share that attempt's outcome.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()

	if started {
		return nil
	}

	_, err, _ := c.starts.Do("start", func() (any, error) {
		return nil, c.doStart(ctx)
	})

	return err
}

func (c *Client) doStart(ctx context.Context) error {
	c.mu.Lock()

	if c.started {
		c.mu.Unlock()

		return nil
	}

	c.mu.Unlock()

	transport := c.options.Transport
	if transport == nil {
		transport = subprocess.NewAppServerTransport(c.log, c.options)
	}

	if err := transport.Start(ctx); err != nil {
		return err
	}

	// The read loop outlives the Start call's context: the session stays
	// connected until Close.
	runCtx, runCancel := context.WithCancel(context.Background())

	session := protocol.NewSession(c.log, transport, c.options)
	session.Start(runCtx)

	if err := session.Initialize(ctx); err != nil {
		session.Stop()
		runCancel()

		_ = transport.Close()

		return err
	}

	c.mu.Lock()
	c.transport = transport
	c.session = session
	c.runCancel = runCancel
	c.started = true
	c.mu.Unlock()

	c.log.Info("Client started")

	return nil
}

// Close stops the session and terminates the app server process. It is
// idempotent, and a later Start re-spawns cleanly.
func (c *Client) Close() error {
	c.mu.Lock()

	if !c.started {
		c.mu.Unlock()

		return nil
	}

	c.started = false
	session := c.session
	transport := c.transport
	runCancel := c.runCancel
	c.session = nil
	c.transport = nil
	c.runCancel = nil
	c.mu.Unlock()

	c.log.Info("Closing client")

	// Detach the reader before terminating the child.
	runCancel()
	session.Stop()

	err := transport.Close()

	c.log.Info("Client closed")

	return err
}

// StartThread starts a new persistent thread, starting the session first
// if needed, and returns the thread id.
func (c *Client) StartThread(ctx context.Context, cfg *config.ThreadConfig) (string, error) {
	session, err := c.ensureStarted(ctx)
	if err != nil {
		return "", err
	}

	return session.StartThread(ctx, cfg)
}

// ResumeThread resumes an existing thread the app server retains.
func (c *Client) ResumeThread(ctx context.Context, threadID string, cfg *config.ThreadConfig) (string, error) {
	session, err := c.ensureStarted(ctx)
	if err != nil {
		return "", err
	}

	return session.ResumeThread(ctx, threadID, cfg)
}

// RunTurn submits one text input to a thread and waits for the turn's
// terminal result.
func (c *Client) RunTurn(
	ctx context.Context,
	threadID string,
	text string,
	opts *config.TurnOptions,
) (*config.TurnResult, error) {
	session, err := c.ensureStarted(ctx)
	if err != nil {
		return nil, err
	}

	return session.RunTurn(ctx, threadID, text, opts)
}

// InterruptTurn asks the app server to interrupt an in-flight turn.
func (c *Client) InterruptTurn(ctx context.Context, threadID, turnID string) error {
	session, err := c.ensureStarted(ctx)
	if err != nil {
		return err
	}

	return session.InterruptTurn(ctx, threadID, turnID)
}

// ensureStarted starts the session if needed and returns the live session.
func (c *Client) ensureStarted(ctx context.Context) (*protocol.Session, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, errors.ErrNotStarted
	}

	return c.session, nil
}
