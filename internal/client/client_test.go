package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentwire/codex-sdk-go/internal/config"
	"github.com/agentwire/codex-sdk-go/internal/errors"
	"github.com/agentwire/codex-sdk-go/internal/rpc"
)

// stubTransport answers the handshake and counts lifecycle calls.
type stubTransport struct {
	mu         sync.Mutex
	startCalls int
	closeCalls int
	startErr   error
	rejectInit bool

	msgChan chan *rpc.Message
	errChan chan error
}

func newStubTransport() *stubTransport {
	return &stubTransport{
		msgChan: make(chan *rpc.Message, 16),
		errChan: make(chan error, 1),
	}
}

func (s *stubTransport) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startCalls++

	return s.startErr
}

func (s *stubTransport) ReadMessages(_ context.Context) (<-chan *rpc.Message, <-chan error) {
	return s.msgChan, s.errChan
}

func (s *stubTransport) SendMessage(_ context.Context, msg *rpc.Message) error {
	if msg.Method != "initialize" {
		return nil
	}

	s.mu.Lock()
	reject := s.rejectInit
	s.mu.Unlock()

	if reject {
		s.msgChan <- rpc.NewError(msg.ID, -32000, "initialize rejected")

		return nil
	}

	s.msgChan <- &rpc.Message{
		JSONRPC: rpc.Version,
		ID:      msg.ID,
		Result:  json.RawMessage(`{"userAgent":"codex/test"}`),
	}

	return nil
}

func (s *stubTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeCalls++

	return nil
}

func (s *stubTransport) IsReady() bool { return true }

func (s *stubTransport) counts() (starts, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.startCalls, s.closeCalls
}

func newStubClient(t *testing.T) (*Client, *stubTransport) {
	t.Helper()

	transport := newStubTransport()
	client := New(&config.Options{Transport: transport})

	t.Cleanup(func() { _ = client.Close() })

	return client, transport
}

func TestNew_NilOptions(t *testing.T) {
	client := New(nil)
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}

func TestStart_SetsStartedState(t *testing.T) {
	client, transport := newStubClient(t)

	require.NoError(t, client.Start(context.Background()))

	client.mu.Lock()
	require.True(t, client.started)
	require.NotNil(t, client.session)
	require.NotNil(t, client.runCancel)
	client.mu.Unlock()

	starts, _ := transport.counts()
	require.Equal(t, 1, starts)
}

func TestStart_SecondCallIsNoop(t *testing.T) {
	client, transport := newStubClient(t)

	require.NoError(t, client.Start(context.Background()))
	require.NoError(t, client.Start(context.Background()))

	starts, _ := transport.counts()
	require.Equal(t, 1, starts)
}

func TestStart_TransportFailureIsRetryable(t *testing.T) {
	client, transport := newStubClient(t)

	transport.mu.Lock()
	transport.startErr = fmt.Errorf("spawn failed")
	transport.mu.Unlock()

	err := client.Start(context.Background())
	require.EqualError(t, err, "spawn failed")

	client.mu.Lock()
	require.False(t, client.started)
	client.mu.Unlock()

	transport.mu.Lock()
	transport.startErr = nil
	transport.mu.Unlock()

	require.NoError(t, client.Start(context.Background()))

	starts, _ := transport.counts()
	require.Equal(t, 2, starts)
}

func TestStart_HandshakeFailureCleansUp(t *testing.T) {
	client, transport := newStubClient(t)

	transport.mu.Lock()
	transport.rejectInit = true
	transport.mu.Unlock()

	err := client.Start(context.Background())

	var startupErr *errors.StartupError
	require.ErrorAs(t, err, &startupErr)

	client.mu.Lock()
	require.False(t, client.started)
	require.Nil(t, client.session)
	client.mu.Unlock()

	// The failed attempt tore the transport down.
	_, closes := transport.counts()
	require.Equal(t, 1, closes)

	transport.mu.Lock()
	transport.rejectInit = false
	transport.mu.Unlock()

	require.NoError(t, client.Start(context.Background()))
}

func TestClose_BeforeStart(t *testing.T) {
	client, transport := newStubClient(t)

	require.NoError(t, client.Close())

	_, closes := transport.counts()
	require.Zero(t, closes)
}

func TestClose_ClearsStateForRestart(t *testing.T) {
	client, transport := newStubClient(t)

	require.NoError(t, client.Start(context.Background()))
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	client.mu.Lock()
	require.False(t, client.started)
	require.Nil(t, client.session)
	require.Nil(t, client.transport)
	client.mu.Unlock()

	starts, closes := transport.counts()
	require.Equal(t, 1, starts)
	require.Equal(t, 1, closes)

	require.NoError(t, client.Start(context.Background()))

	starts, _ = transport.counts()
	require.Equal(t, 2, starts)
}
