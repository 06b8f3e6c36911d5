package protocol

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/agentwire/codex-sdk-go/internal/config"
	"github.com/agentwire/codex-sdk-go/internal/errors"
	"github.com/agentwire/codex-sdk-go/internal/rpc"
)

// defaultTurnFailure is the error message reported when a turn ends with a
// non-success status and the app server supplied no message.
const defaultTurnFailure = "codex turn failed"

// turnTracker aggregates the notification stream of one in-flight turn.
//
// A tracker is created when turn/start yields a turn id and destroyed
// exactly once: by the terminal turn/completed notification or by timeout
// expiry, whichever fires first. Notifications for a destroyed tracker are
// inert.
type turnTracker struct {
	threadID string
	turnID   string

	// items maps item id to its accumulated text. Deltas append;
	// item/completed replaces.
	items         map[string]string
	lastAgentText string
	lastNonEmpty  string

	// outcome is the one-shot completion slot, buffered so the resolver
	// never blocks.
	outcome chan turnOutcome

	timer *clock.Timer
}

type turnOutcome struct {
	result *config.TurnResult
	err    error
}

// Wire shapes for thread and turn operations.

type threadStartResult struct {
	Thread struct {
		ID string `json:"id"`
	} `json:"thread"`
}

type turnStartParams struct {
	ThreadID       string          `json:"threadId"`
	Input          []turnInputItem `json:"input"`
	Model          *string         `json:"model,omitempty"`
	Effort         *string         `json:"effort,omitempty"`
	Summary        *string         `json:"summary,omitempty"`
	ApprovalPolicy *string         `json:"approvalPolicy,omitempty"`
}

type turnInputItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type turnStartResult struct {
	Turn struct {
		ID string `json:"id"`
	} `json:"turn"`
}

type agentMessageDeltaParams struct {
	TurnID string `json:"turnId"`
	ItemID string `json:"itemId"`
	Delta  string `json:"delta"`
}

type itemCompletedParams struct {
	TurnID string `json:"turnId"`
	Item   struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"item"`
}

type turnCompletedParams struct {
	Turn struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"turn"`
}

// StartThread starts a new persistent thread and returns its id.
func (s *Session) StartThread(ctx context.Context, cfg *config.ThreadConfig) (string, error) {
	if cfg == nil {
		cfg = &config.ThreadConfig{}
	}

	result, err := s.Call(ctx, "thread/start", cfg)
	if err != nil {
		return "", err
	}

	return parseThreadID("thread/start", result)
}

// ResumeThread resumes an existing thread the app server retains.
func (s *Session) ResumeThread(ctx context.Context, threadID string, cfg *config.ThreadConfig) (string, error) {
	if cfg == nil {
		cfg = &config.ThreadConfig{}
	}

	params := struct {
		*config.ThreadConfig
		ThreadID string `json:"threadId"`
	}{cfg, threadID}

	result, err := s.Call(ctx, "thread/resume", params)
	if err != nil {
		return "", err
	}

	return parseThreadID("thread/resume", result)
}

func parseThreadID(method string, result json.RawMessage) (string, error) {
	var parsed threadStartResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return "", &errors.ContractError{Method: method, Field: "thread"}
	}

	if parsed.Thread.ID == "" {
		return "", &errors.ContractError{Method: method, Field: "thread.id"}
	}

	return parsed.Thread.ID, nil
}

// RunTurn submits one text input to a thread and suspends the caller until
// the turn reaches a terminal state.
//
// A turn ending in a non-success status resolves normally with
// Status=failed; only timeouts, transport failures, and contract
// violations return an error. Concurrent turns are keyed independently by
// turn id and never block one another.
func (s *Session) RunTurn(
	ctx context.Context,
	threadID string,
	text string,
	opts *config.TurnOptions,
) (*config.TurnResult, error) {
	if opts == nil {
		opts = &config.TurnOptions{}
	}

	params := turnStartParams{
		ThreadID:       threadID,
		Input:          []turnInputItem{{Type: "text", Text: text}},
		Model:          opts.Model,
		Effort:         opts.Effort,
		Summary:        opts.Summary,
		ApprovalPolicy: opts.ApprovalPolicy,
	}

	tracker := &turnTracker{
		threadID: threadID,
		items:    make(map[string]string, 4),
		outcome:  make(chan turnOutcome, 1),
	}

	// The tracker must be in the registry before the read loop routes the
	// message after the turn/start response: notifications for the new
	// turn can follow it back-to-back on the ordered stream. The hook
	// runs on the read loop, so registration happens before the loop
	// advances.
	result, err := s.call(ctx, "turn/start", params, func(msg *rpc.Message) {
		if msg.Error != nil {
			return
		}

		var parsed turnStartResult
		if err := json.Unmarshal(msg.Result, &parsed); err != nil || parsed.Turn.ID == "" {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		tracker.turnID = parsed.Turn.ID
		s.turns[parsed.Turn.ID] = tracker

		if opts.Timeout > 0 {
			timeout := opts.Timeout
			tracker.timer = s.clock.AfterFunc(timeout, func() {
				s.expireTurn(parsed.Turn.ID, timeout.String())
			})
		}
	})
	if err != nil {
		// The hook may have registered the tracker even though the caller
		// gave up (cancellation racing the response).
		s.abandonRegistered(tracker)

		return nil, err
	}

	var parsed turnStartResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, &errors.ContractError{Method: "turn/start", Field: "turn"}
	}

	turnID := parsed.Turn.ID
	if turnID == "" {
		return nil, &errors.ContractError{Method: "turn/start", Field: "turn.id"}
	}

	s.log.Debug("Turn started", "thread_id", threadID, "turn_id", turnID)

	select {
	case outcome := <-tracker.outcome:
		return outcome.result, outcome.err

	case <-s.done:
		s.abandonTurn(turnID)

		return nil, errors.ErrSessionClosed

	case <-ctx.Done():
		s.abandonTurn(turnID)

		return nil, ctx.Err()
	}
}

// InterruptTurn asks the app server to interrupt an in-flight turn. The
// turn still resolves through its tracker when the terminal notification
// arrives.
func (s *Session) InterruptTurn(ctx context.Context, threadID, turnID string) error {
	params := map[string]any{
		"threadId": threadID,
		"turnId":   turnID,
	}

	_, err := s.Call(ctx, "turn/interrupt", params)

	return err
}

// expireTurn is the timeout path: it removes the tracker and fails the
// caller. A turn/completed arriving after expiry finds no tracker and is a
// no-op.
func (s *Session) expireTurn(turnID, timeout string) {
	tracker := s.takeTurn(turnID)
	if tracker == nil {
		return
	}

	s.log.Warn("Turn timed out", "turn_id", turnID, "timeout", timeout)

	tracker.outcome <- turnOutcome{err: &errors.TurnTimeoutError{TurnID: turnID, Timeout: timeout}}
}

// abandonTurn drops a tracker without resolving it, used when the caller
// stops waiting (context cancellation or session stop).
func (s *Session) abandonTurn(turnID string) {
	tracker := s.takeTurn(turnID)
	if tracker != nil && tracker.timer != nil {
		tracker.timer.Stop()
	}
}

// abandonRegistered abandons a tracker that may or may not have made it
// into the registry.
func (s *Session) abandonRegistered(tracker *turnTracker) {
	s.mu.Lock()
	turnID := tracker.turnID
	s.mu.Unlock()

	if turnID != "" {
		s.abandonTurn(turnID)
	}
}

// takeTurn removes and returns the tracker for a turn id, or nil if the
// turn already reached a terminal state.
func (s *Session) takeTurn(turnID string) *turnTracker {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracker, exists := s.turns[turnID]
	if !exists {
		return nil
	}

	delete(s.turns, turnID)

	return tracker
}

// handleNotification applies one notification to the turn registry.
// Methods that are not recognized, and notifications for turns that are no
// longer tracked, are ignored.
func (s *Session) handleNotification(msg *rpc.Message) {
	switch msg.Method {
	case "item/agentMessage/delta":
		s.handleAgentMessageDelta(msg.Params)

	case "item/completed":
		s.handleItemCompleted(msg.Params)

	case "turn/completed":
		s.handleTurnCompleted(msg.Params)

	default:
		s.log.Debug("Ignoring notification", "method", msg.Method)
	}
}

func (s *Session) handleAgentMessageDelta(params json.RawMessage) {
	var p agentMessageDeltaParams
	if err := json.Unmarshal(params, &p); err != nil || p.TurnID == "" || p.ItemID == "" {
		s.log.Debug("Ignoring malformed agent message delta")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tracker, exists := s.turns[p.TurnID]
	if !exists {
		return
	}

	tracker.items[p.ItemID] += p.Delta
	tracker.noteAgentText(tracker.items[p.ItemID])
}

func (s *Session) handleItemCompleted(params json.RawMessage) {
	var p itemCompletedParams
	if err := json.Unmarshal(params, &p); err != nil || p.TurnID == "" {
		s.log.Debug("Ignoring malformed item completion")

		return
	}

	// Only agent messages contribute to the turn's output text.
	if p.Item.Type != "agentMessage" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tracker, exists := s.turns[p.TurnID]
	if !exists {
		return
	}

	// Final text replaces any prior partial deltas for this item.
	tracker.items[p.Item.ID] = p.Item.Text
	tracker.noteAgentText(p.Item.Text)
}

// handleTurnCompleted is the terminal transition: it clears any pending
// timeout, removes the tracker so the turn can never transition twice, and
// resolves the caller's result. The result is always a successful
// resolution; a failed status is encoded as data.
func (s *Session) handleTurnCompleted(params json.RawMessage) {
	var p turnCompletedParams
	if err := json.Unmarshal(params, &p); err != nil || p.Turn.ID == "" {
		s.log.Debug("Ignoring malformed turn completion")

		return
	}

	tracker := s.takeTurn(p.Turn.ID)
	if tracker == nil {
		s.log.Debug("Turn completion for unknown turn, dropping", "turn_id", p.Turn.ID)

		return
	}

	if tracker.timer != nil {
		tracker.timer.Stop()
	}

	result := &config.TurnResult{OutputText: tracker.lastNonEmpty}

	switch p.Turn.Status {
	case "completed":
		result.Status = config.TurnCompleted
	case "interrupted":
		result.Status = config.TurnInterrupted
	default:
		result.Status = config.TurnFailed
		result.Error = defaultTurnFailure

		if p.Turn.Error != nil && p.Turn.Error.Message != "" {
			result.Error = p.Turn.Error.Message
		}
	}

	s.log.Debug("Turn completed", "turn_id", p.Turn.ID, "status", result.Status)

	tracker.outcome <- turnOutcome{result: result}
}

// noteAgentText records newly seen agent text for the turn. The trimmed
// form is retained only when non-empty, so a trailing blank item cannot
// erase the turn's output.
func (t *turnTracker) noteAgentText(text string) {
	t.lastAgentText = text

	if trimmed := strings.TrimSpace(text); trimmed != "" {
		t.lastNonEmpty = trimmed
	}
}
