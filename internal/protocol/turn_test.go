package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/codex-sdk-go/internal/config"
	"github.com/agentwire/codex-sdk-go/internal/errors"
)

// injectTracker registers a tracker directly, for driving notification
// handlers synchronously without a running read loop.
func injectTracker(s *Session, turnID string) *turnTracker {
	tracker := &turnTracker{
		turnID:  turnID,
		items:   make(map[string]string, 4),
		outcome: make(chan turnOutcome, 1),
	}

	s.mu.Lock()
	s.turns[turnID] = tracker
	s.mu.Unlock()

	return tracker
}

func deltaParams(turnID, itemID, delta string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"turnId":%q,"itemId":%q,"delta":%q}`, turnID, itemID, delta,
	))
}

func TestDeltaAccumulation_OrderPreserving(t *testing.T) {
	session, _ := newTestSession(t, nil)
	tracker := injectTracker(session, "u1")

	session.handleAgentMessageDelta(deltaParams("u1", "i1", "Hel"))
	session.handleAgentMessageDelta(deltaParams("u1", "i1", "lo "))
	session.handleAgentMessageDelta(deltaParams("u1", "i1", "world"))

	require.Equal(t, "Hello world", tracker.items["i1"])
	require.Equal(t, "Hello world", tracker.lastNonEmpty)
}

func TestDelta_TracksItemsIndependently(t *testing.T) {
	session, _ := newTestSession(t, nil)
	tracker := injectTracker(session, "u1")

	session.handleAgentMessageDelta(deltaParams("u1", "i1", "first"))
	session.handleAgentMessageDelta(deltaParams("u1", "i2", "second"))
	session.handleAgentMessageDelta(deltaParams("u1", "i1", " item"))

	require.Equal(t, "first item", tracker.items["i1"])
	require.Equal(t, "second", tracker.items["i2"])
	require.Equal(t, "first item", tracker.lastNonEmpty)
}

func TestDelta_BlankTextDoesNotEraseOutput(t *testing.T) {
	session, _ := newTestSession(t, nil)
	tracker := injectTracker(session, "u1")

	session.handleAgentMessageDelta(deltaParams("u1", "i1", "answer"))
	session.handleAgentMessageDelta(deltaParams("u1", "i2", "  \n"))

	require.Equal(t, "  \n", tracker.lastAgentText)
	require.Equal(t, "answer", tracker.lastNonEmpty)
}

func TestDelta_UnknownTurnIgnored(t *testing.T) {
	session, _ := newTestSession(t, nil)

	// Must not panic or create a tracker.
	session.handleAgentMessageDelta(deltaParams("ghost", "i1", "text"))

	session.mu.Lock()
	defer session.mu.Unlock()
	require.Empty(t, session.turns)
}

func TestDelta_MissingFieldsIgnored(t *testing.T) {
	session, _ := newTestSession(t, nil)
	tracker := injectTracker(session, "u1")

	session.handleAgentMessageDelta(json.RawMessage(`{"turnId":"u1"}`))
	session.handleAgentMessageDelta(json.RawMessage(`{"itemId":"i1","delta":"x"}`))
	session.handleAgentMessageDelta(json.RawMessage(`not json`))

	require.Empty(t, tracker.items)
}

func TestItemCompleted_ReplacesPartialDeltas(t *testing.T) {
	session, _ := newTestSession(t, nil)
	tracker := injectTracker(session, "u1")

	session.handleAgentMessageDelta(deltaParams("u1", "i1", "partial dr"))
	session.handleItemCompleted(json.RawMessage(
		`{"turnId":"u1","item":{"type":"agentMessage","id":"i1","text":"final"}}`,
	))

	require.Equal(t, "final", tracker.items["i1"])
	require.Equal(t, "final", tracker.lastNonEmpty)
}

func TestItemCompleted_NonAgentMessageIgnored(t *testing.T) {
	session, _ := newTestSession(t, nil)
	tracker := injectTracker(session, "u1")

	session.handleItemCompleted(json.RawMessage(
		`{"turnId":"u1","item":{"type":"commandExecution","id":"i1","text":"ls"}}`,
	))

	require.Empty(t, tracker.items)
	require.Empty(t, tracker.lastNonEmpty)
}

func TestTurnCompleted_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		params     string
		wantStatus config.TurnStatus
		wantError  string
	}{
		{
			name:       "completed",
			params:     `{"turn":{"id":"u1","status":"completed"}}`,
			wantStatus: config.TurnCompleted,
		},
		{
			name:       "interrupted",
			params:     `{"turn":{"id":"u1","status":"interrupted"}}`,
			wantStatus: config.TurnInterrupted,
		},
		{
			name:       "error status with message",
			params:     `{"turn":{"id":"u1","status":"error","error":{"message":"boom"}}}`,
			wantStatus: config.TurnFailed,
			wantError:  "boom",
		},
		{
			name:       "unknown status without message",
			params:     `{"turn":{"id":"u1","status":"exploded"}}`,
			wantStatus: config.TurnFailed,
			wantError:  "codex turn failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, _ := newTestSession(t, nil)
			tracker := injectTracker(session, "u1")

			session.handleAgentMessageDelta(deltaParams("u1", "i1", "output"))
			session.handleTurnCompleted(json.RawMessage(tt.params))

			outcome := <-tracker.outcome
			require.NoError(t, outcome.err)
			require.Equal(t, tt.wantStatus, outcome.result.Status)
			require.Equal(t, "output", outcome.result.OutputText)
			require.Equal(t, tt.wantError, outcome.result.Error)
		})
	}
}

func TestTurnCompleted_RemovesTracker(t *testing.T) {
	session, _ := newTestSession(t, nil)
	tracker := injectTracker(session, "u1")

	completion := json.RawMessage(`{"turn":{"id":"u1","status":"completed"}}`)

	session.handleTurnCompleted(completion)
	<-tracker.outcome

	session.mu.Lock()
	require.Empty(t, session.turns)
	session.mu.Unlock()

	// A duplicate terminal event finds no tracker and is a no-op.
	session.handleTurnCompleted(completion)
	require.Empty(t, tracker.outcome)
}

func TestTurnCompleted_AfterNotificationsForOtherTurns(t *testing.T) {
	session, _ := newTestSession(t, nil)
	first := injectTracker(session, "u1")
	second := injectTracker(session, "u2")

	session.handleAgentMessageDelta(deltaParams("u1", "i1", "one"))
	session.handleAgentMessageDelta(deltaParams("u2", "i1", "two"))
	session.handleTurnCompleted(json.RawMessage(`{"turn":{"id":"u1","status":"completed"}}`))

	outcome := <-first.outcome
	require.Equal(t, "one", outcome.result.OutputText)

	// The other turn is still live and unaffected.
	require.Empty(t, second.outcome)

	session.mu.Lock()
	defer session.mu.Unlock()
	require.Contains(t, session.turns, "u2")
}

func startTurn(
	t *testing.T,
	session *Session,
	transport *mockTransport,
	opts *config.TurnOptions,
) chan turnOutcome {
	t.Helper()

	resultChan := make(chan turnOutcome, 1)

	go func() {
		result, err := session.RunTurn(context.Background(), "t1", "Hello codex", opts)
		resultChan <- turnOutcome{result: result, err: err}
	}()

	awaitSent(t, transport, 1)

	sent := transport.sentMessages()[0]
	require.Equal(t, "turn/start", sent.Method)

	transport.deliverResponse(1, `{"turn":{"id":"u1"}}`)

	require.Eventually(t, func() bool {
		session.mu.Lock()
		defer session.mu.Unlock()

		_, ok := session.turns["u1"]

		return ok
	}, time.Second, time.Millisecond)

	return resultChan
}

func TestRunTurn_DeltasThenCompleted(t *testing.T) {
	session, transport := newTestSession(t, nil)
	session.Start(context.Background())

	defer session.Stop()

	resultChan := startTurn(t, session, transport, nil)

	transport.deliverNotification("item/agentMessage/delta",
		`{"turnId":"u1","itemId":"i1","delta":"Hello "}`)
	transport.deliverNotification("item/agentMessage/delta",
		`{"turnId":"u1","itemId":"i1","delta":"world"}`)
	transport.deliverNotification("turn/completed",
		`{"turn":{"id":"u1","status":"completed"}}`)

	outcome := <-resultChan
	require.NoError(t, outcome.err)
	require.Equal(t, config.TurnCompleted, outcome.result.Status)
	require.Equal(t, "Hello world", outcome.result.OutputText)
}

func TestRunTurn_CompletionBackToBackWithStartResponse(t *testing.T) {
	session, transport := newTestSession(t, nil)
	session.Start(context.Background())

	defer session.Stop()

	resultChan := make(chan turnOutcome, 1)

	go func() {
		result, err := session.RunTurn(context.Background(), "t1", "Hello codex", nil)
		resultChan <- turnOutcome{result: result, err: err}
	}()

	awaitSent(t, transport, 1)

	// The app server can emit the turn's entire notification stream
	// immediately after the turn/start response on the same ordered
	// stream. Nothing may be lost in between.
	transport.deliverResponse(1, `{"turn":{"id":"u1"}}`)
	transport.deliverNotification("item/agentMessage/delta",
		`{"turnId":"u1","itemId":"i1","delta":"instant"}`)
	transport.deliverNotification("turn/completed",
		`{"turn":{"id":"u1","status":"completed"}}`)

	select {
	case outcome := <-resultChan:
		require.NoError(t, outcome.err)
		require.Equal(t, config.TurnCompleted, outcome.result.Status)
		require.Equal(t, "instant", outcome.result.OutputText)

	case <-time.After(2 * time.Second):
		t.Fatal("turn never resolved; notifications arriving right after the start response were lost")
	}
}

func TestRunTurn_FailedStatusResolvesNotErrors(t *testing.T) {
	session, transport := newTestSession(t, nil)
	session.Start(context.Background())

	defer session.Stop()

	resultChan := startTurn(t, session, transport, nil)

	transport.deliverNotification("turn/completed",
		`{"turn":{"id":"u1","status":"error","error":{"message":"rate limited"}}}`)

	outcome := <-resultChan
	require.NoError(t, outcome.err)
	require.Equal(t, config.TurnFailed, outcome.result.Status)
	require.Equal(t, "rate limited", outcome.result.Error)
}

func TestRunTurn_Timeout(t *testing.T) {
	session, transport := newTestSession(t, nil)
	mockClock := clock.NewMock()
	session.clock = mockClock

	session.Start(context.Background())

	defer session.Stop()

	resultChan := startTurn(t, session, transport, &config.TurnOptions{
		Timeout: 50 * time.Millisecond,
	})

	mockClock.Add(60 * time.Millisecond)

	outcome := <-resultChan
	require.Error(t, outcome.err)
	require.IsType(t, &errors.TurnTimeoutError{}, outcome.err)
	require.Nil(t, outcome.result)

	// A terminal event arriving after expiry has no observable effect.
	transport.deliverNotification("turn/completed",
		`{"turn":{"id":"u1","status":"completed"}}`)

	require.Eventually(t, func() bool {
		session.mu.Lock()
		defer session.mu.Unlock()

		return len(session.turns) == 0
	}, time.Second, time.Millisecond)
}

func TestRunTurn_CompletionStopsTimer(t *testing.T) {
	session, transport := newTestSession(t, nil)
	mockClock := clock.NewMock()
	session.clock = mockClock

	session.Start(context.Background())

	defer session.Stop()

	resultChan := startTurn(t, session, transport, &config.TurnOptions{
		Timeout: 50 * time.Millisecond,
	})

	transport.deliverNotification("turn/completed",
		`{"turn":{"id":"u1","status":"completed"}}`)

	outcome := <-resultChan
	require.NoError(t, outcome.err)
	require.Equal(t, config.TurnCompleted, outcome.result.Status)

	// Advancing past the window after completion must not fire anything.
	mockClock.Add(100 * time.Millisecond)
}

func TestRunTurn_MissingTurnID(t *testing.T) {
	session, transport := newTestSession(t, nil)
	session.Start(context.Background())

	defer session.Stop()

	errChan := make(chan error, 1)

	go func() {
		_, err := session.RunTurn(context.Background(), "t1", "Hello", nil)
		errChan <- err
	}()

	awaitSent(t, transport, 1)
	transport.deliverResponse(1, `{"turn":{}}`)

	err := <-errChan
	require.IsType(t, &errors.ContractError{}, err)
	require.EqualError(t, err, "turn/start response missing turn.id")

	// No tracker is created for a contract violation.
	session.mu.Lock()
	defer session.mu.Unlock()
	require.Empty(t, session.turns)
}

func TestStartThread(t *testing.T) {
	session, transport := newTestSession(t, nil)
	session.Start(context.Background())

	defer session.Stop()

	type result struct {
		threadID string
		err      error
	}

	resultChan := make(chan result, 1)

	go func() {
		threadID, err := session.StartThread(context.Background(), &config.ThreadConfig{
			Model: ptr("gpt-5"),
		})
		resultChan <- result{threadID, err}
	}()

	awaitSent(t, transport, 1)

	sent := transport.sentMessages()[0]
	require.Equal(t, "thread/start", sent.Method)

	var params map[string]any
	require.NoError(t, json.Unmarshal(sent.Params, &params))
	require.Equal(t, "gpt-5", params["model"])

	transport.deliverResponse(1, `{"thread":{"id":"t1"}}`)

	got := <-resultChan
	require.NoError(t, got.err)
	require.Equal(t, "t1", got.threadID)
}

func TestStartThread_MissingID(t *testing.T) {
	session, transport := newTestSession(t, nil)
	session.Start(context.Background())

	defer session.Stop()

	errChan := make(chan error, 1)

	go func() {
		_, err := session.StartThread(context.Background(), nil)
		errChan <- err
	}()

	awaitSent(t, transport, 1)
	transport.deliverResponse(1, `{}`)

	require.IsType(t, &errors.ContractError{}, <-errChan)
}

func TestResumeThread_IncludesThreadID(t *testing.T) {
	session, transport := newTestSession(t, nil)
	session.Start(context.Background())

	defer session.Stop()

	errChan := make(chan error, 1)

	go func() {
		_, err := session.ResumeThread(context.Background(), "t-old", &config.ThreadConfig{})
		errChan <- err
	}()

	awaitSent(t, transport, 1)

	sent := transport.sentMessages()[0]
	require.Equal(t, "thread/resume", sent.Method)

	var params map[string]any
	require.NoError(t, json.Unmarshal(sent.Params, &params))
	require.Equal(t, "t-old", params["threadId"])

	transport.deliverResponse(1, `{"thread":{"id":"t-old"}}`)
	require.NoError(t, <-errChan)
}

func TestInterruptTurn(t *testing.T) {
	session, transport := newTestSession(t, nil)
	session.Start(context.Background())

	defer session.Stop()

	errChan := make(chan error, 1)

	go func() {
		errChan <- session.InterruptTurn(context.Background(), "t1", "u1")
	}()

	awaitSent(t, transport, 1)

	sent := transport.sentMessages()[0]
	require.Equal(t, "turn/interrupt", sent.Method)

	var params map[string]any
	require.NoError(t, json.Unmarshal(sent.Params, &params))
	require.Equal(t, "t1", params["threadId"])
	require.Equal(t, "u1", params["turnId"])

	transport.deliverResponse(1, `{"ok":true}`)
	require.NoError(t, <-errChan)
}

func ptr[T any](v T) *T {
	return &v
}
