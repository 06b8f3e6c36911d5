package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/oklog/ulid/v2"

	"github.com/agentwire/codex-sdk-go/internal/config"
	"github.com/agentwire/codex-sdk-go/internal/errors"
	"github.com/agentwire/codex-sdk-go/internal/rpc"
)

const (
	// defaultInitializeTimeout bounds the initialize handshake request.
	defaultInitializeTimeout = 60 * time.Second
)

// Session manages bidirectional JSON-RPC communication with the codex app
// server.
//
// The Session handles:
//   - Sending requests with monotonically increasing integer ids
//   - Receiving and routing responses to waiting requests
//   - Aggregating per-turn notification streams into terminal results
//   - Answering requests the app server makes of the client
//
// The Session must be started with Start() before use and manages its own
// goroutine for reading and routing messages. Each Session instance is
// independently constructible and disposable; all correlation state is
// per-instance.
type Session struct {
	log       *slog.Logger
	transport config.Transport
	options   *config.Options
	clock     clock.Clock

	// Correlation state. One mutex covers both tables; mutation happens
	// only from the read loop, timer callbacks, and caller registration.
	mu      sync.Mutex
	nextID  int64
	pending map[string]*pendingRequest
	turns   map[string]*turnTracker

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// pendingRequest tracks an outgoing request awaiting its response. The
// channel is buffered and receives exactly one message; the table entry is
// removed atomically with delivery.
type pendingRequest struct {
	method   string
	response chan *rpc.Message

	// onResponse, when set, runs on the read loop goroutine before the
	// response is delivered and before any later message is routed.
	// Callers use it to register correlation state keyed by the response
	// (such as a turn tracker) without racing the ordered stream.
	onResponse func(*rpc.Message)
}

// NewSession creates a new protocol session.
//
// The logger will receive debug, info, warn, and error messages during
// protocol operations. The transport must be connected before calling
// Start().
func NewSession(log *slog.Logger, transport config.Transport, options *config.Options) *Session {
	return &Session{
		log:       log.With("component", "session", "session_id", ulid.Make().String()),
		transport: transport,
		options:   options,
		clock:     clock.New(),
		pending:   make(map[string]*pendingRequest, 10),
		turns:     make(map[string]*turnTracker, 4),
		done:      make(chan struct{}),
	}
}

// Start begins reading messages from the transport and routing them.
//
// This spawns a goroutine that drains the transport and dispatches each
// message by its wire shape. The goroutine stops when the context is
// cancelled, the transport closes, or Stop is called.
func (s *Session) Start(ctx context.Context) {
	s.log.Debug("Starting protocol session")

	messages, errs := s.transport.ReadMessages(ctx)

	s.wg.Add(1)

	go s.readLoop(ctx, messages, errs)

	s.log.Info("Protocol session started")
}

// Stop shuts down the session. Callers suspended in Call or RunTurn fail
// with ErrSessionClosed. Safe to call multiple times.
func (s *Session) Stop() {
	s.log.Debug("Stopping protocol session")

	s.closeDone()
	s.stopAllTimers()
	s.wg.Wait()
	s.log.Info("Protocol session stopped")
}

// Done returns a channel that is closed when the session stops.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// closeDone safely closes the done channel exactly once.
func (s *Session) closeDone() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// stopAllTimers stops any armed turn timeout timers.
func (s *Session) stopAllTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tracker := range s.turns {
		if tracker.timer != nil {
			tracker.timer.Stop()
		}
	}
}

// Initialize performs the startup handshake: an initialize request that
// must yield a non-empty result, followed by an initialized notification.
// Registered tools are advertised in the initialize payload.
func (s *Session) Initialize(ctx context.Context) error {
	s.log.Debug("Sending initialize request")

	params := map[string]any{
		"clientInfo": map[string]any{
			"name":    s.clientName(),
			"version": s.clientVersion(),
		},
	}

	if len(s.options.Tools) > 0 {
		descriptors := make([]map[string]any, 0, len(s.options.Tools))
		for _, t := range s.options.Tools {
			descriptors = append(descriptors, t.Descriptor())
		}

		params["tools"] = descriptors
	}

	ctx, cancel := context.WithTimeout(ctx, s.initializeTimeout())
	defer cancel()

	result, err := s.Call(ctx, "initialize", params)
	if err != nil {
		return &errors.StartupError{Reason: "initialize request failed", Err: err}
	}

	if emptyResult(result) {
		return &errors.StartupError{Reason: "initialize returned no result"}
	}

	if err := s.Notify(ctx, "initialized", nil); err != nil {
		return &errors.StartupError{Reason: "initialized notification failed", Err: err}
	}

	s.log.Info("Codex session initialized")

	return nil
}

// initializeTimeout returns the handshake timeout from options or default.
func (s *Session) initializeTimeout() time.Duration {
	if s.options != nil && s.options.InitializeTimeout != nil {
		return *s.options.InitializeTimeout
	}

	return defaultInitializeTimeout
}

func (s *Session) clientName() string {
	if s.options != nil && s.options.ClientName != "" {
		return s.options.ClientName
	}

	return "codex-sdk-go"
}

func (s *Session) clientVersion() string {
	if s.options != nil && s.options.ClientVersion != "" {
		return s.options.ClientVersion
	}

	return "0.1.0"
}

// emptyResult reports whether a raw result carries no value.
func emptyResult(result json.RawMessage) bool {
	switch string(result) {
	case "", "null":
		return true
	default:
		return false
	}
}

// Call sends a request and suspends the caller until its response arrives.
//
// Ids come from a monotonically increasing counter and are never reused
// within the session's lifetime. A response carrying an error object fails
// the caller with that error's message; a response carrying a result
// resolves the caller with the raw result.
func (s *Session) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return s.call(ctx, method, params, nil)
}

// call sends a request with an optional onResponse hook; see pendingRequest.
func (s *Session) call(
	ctx context.Context,
	method string,
	params any,
	onResponse func(*rpc.Message),
) (json.RawMessage, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	key := strconv.FormatInt(id, 10)

	pending := &pendingRequest{
		method:     method,
		response:   make(chan *rpc.Message, 1),
		onResponse: onResponse,
	}
	s.pending[key] = pending
	s.mu.Unlock()

	s.log.Debug("Sending request", "id", id, "method", method)

	msg, err := rpc.NewRequest(id, method, params)
	if err != nil {
		s.removePending(key)

		return nil, err
	}

	if err := s.transport.SendMessage(ctx, msg); err != nil {
		s.removePending(key)

		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case resp := <-pending.response:
		if resp.Error != nil {
			s.log.Warn("Request returned error", "id", id, "method", method, "error", resp.Error.Message)

			return nil, &errors.RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
		}

		s.log.Debug("Received response", "id", id, "method", method)

		return resp.Result, nil

	case <-s.done:
		s.removePending(key)

		return nil, errors.ErrSessionClosed

	case <-ctx.Done():
		s.removePending(key)

		return nil, ctx.Err()
	}
}

// Notify sends a notification. Notifications carry no id and get no reply.
func (s *Session) Notify(ctx context.Context, method string, params any) error {
	msg, err := rpc.NewNotification(method, params)
	if err != nil {
		return err
	}

	if err := s.transport.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	return nil
}

func (s *Session) removePending(key string) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

// readLoop drains the transport and routes each message by wire shape.
func (s *Session) readLoop(ctx context.Context, messages <-chan *rpc.Message, errs <-chan error) {
	defer s.wg.Done()
	defer s.log.Debug("Session read loop stopped")

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				s.log.Debug("Message channel closed")

				return
			}

			s.dispatch(ctx, msg)

		case err, ok := <-errs:
			if !ok {
				s.log.Debug("Error channel closed")

				return
			}

			if err != nil {
				// Transport-level failures are logged but do not fail
				// in-flight requests or turns.
				s.log.Error("Transport error", "error", err)
			}

		case <-s.done:
			s.log.Debug("Session stop signal received")

			return

		case <-ctx.Done():
			s.log.Debug("Context cancelled in session read loop")

			return
		}
	}
}

// dispatch routes one decoded message. Exactly one variant holds for any
// valid message; anything else is an explicit logged ignore.
func (s *Session) dispatch(ctx context.Context, msg *rpc.Message) {
	switch msg.Classify() {
	case rpc.KindResponse:
		s.handleResponse(msg)

	case rpc.KindRequest:
		// Run the handler off the read loop so inbound requests arriving
		// while client requests are pending do not stall routing.
		s.wg.Go(func() {
			s.handleServerRequest(ctx, msg)
		})

	case rpc.KindNotification:
		s.handleNotification(msg)

	case rpc.KindInvalid:
		s.log.Debug("Ignoring message with unrecognized shape")
	}
}

// handleResponse resolves the pending request matching the response id.
// Responses with no matching entry are dropped: they may belong to a
// since-restarted session or be duplicates.
func (s *Session) handleResponse(msg *rpc.Message) {
	key := rpc.IDKey(msg.ID)

	s.mu.Lock()

	pending, exists := s.pending[key]
	if exists {
		delete(s.pending, key)
	}

	s.mu.Unlock()

	if !exists {
		s.log.Debug("No pending request for response, dropping", "id", key)

		return
	}

	// Runs before the read loop routes the next message, so state the
	// hook registers is visible to notifications that follow the response
	// on the wire.
	if pending.onResponse != nil {
		pending.onResponse(msg)
	}

	// We own the entry now; the channel is buffered so this never blocks.
	pending.response <- msg
}
