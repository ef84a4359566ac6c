package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"school-portal-be/internal/broker"
	"school-portal-be/internal/dto"
	"school-portal-be/internal/entity"
	"school-portal-be/internal/pkg/logger"
	"school-portal-be/pkg/events"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}
func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) command(t *testing.T, cmd Command) {
	t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	select {
	case c.in <- data:
	case <-time.After(2 * time.Second):
		t.Fatal("gateway did not read command")
	}
}

func (c *fakeConn) frame(t *testing.T) Frame {
	t.Helper()
	select {
	case data := <-c.out:
		var f Frame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func (c *fakeConn) silent(t *testing.T) {
	t.Helper()
	select {
	case data := <-c.out:
		t.Fatalf("unexpected frame %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

type staticChats map[uuid.UUID][]uuid.UUID

func (s staticChats) ListChatIdsForUser(ctx context.Context, userId uuid.UUID) ([]uuid.UUID, error) {
	return s[userId], nil
}

type chatListerFunc func(ctx context.Context, userId uuid.UUID) ([]uuid.UUID, error)

func (f chatListerFunc) ListChatIdsForUser(ctx context.Context, userId uuid.UUID) ([]uuid.UUID, error) {
	return f(ctx, userId)
}

// countingSource counts how many events its subscribers' filters were offered.
type countingSource struct {
	*broker.Broker
	offered atomic.Int64
}

func (s *countingSource) Subscribe(ctx context.Context, eventType events.Type, filter broker.Filter) (<-chan events.Event, error) {
	return s.Broker.Subscribe(ctx, eventType, func(evt events.Event) bool {
		ok := filter(evt)
		s.offered.Add(1)
		return ok
	})
}

type recordingReads struct {
	mu    sync.Mutex
	chats []uuid.UUID
}

func (r *recordingReads) MarkRead(ctx context.Context, principal entity.Principal, chatId uuid.UUID) (*dto.MarkReadResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, chatId)
	return &dto.MarkReadResponse{ChatId: chatId, LastSeen: time.Now()}, nil
}

type gatewayFixture struct {
	broker  *broker.Broker
	source  *countingSource
	hub     *Hub
	gateway *Gateway
	reads   *recordingReads
}

func newGatewayFixture(t *testing.T, chats ChatLister) *gatewayFixture {
	t.Helper()
	log := logger.NewNopLogger()

	b := broker.New(broker.DefaultConfig(), nil, log)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(log)
	go hub.Run(ctx)

	reads := &recordingReads{}
	source := &countingSource{Broker: b}
	return &gatewayFixture{
		broker:  b,
		source:  source,
		hub:     hub,
		gateway: NewGateway(hub, source, chats, reads, log, 16),
		reads:   reads,
	}
}

func (f *gatewayFixture) connect(t *testing.T, userId uuid.UUID) (*fakeConn, <-chan struct{}) {
	t.Helper()
	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.gateway.Serve(conn, entity.Principal{UserId: userId, Role: "student"})
	}()
	require.Eventually(t, func() bool { return f.hub.Online(userId) == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn, done
}

func (f *gatewayFixture) publish(t *testing.T, eventType events.Type, chatId uuid.UUID, targets ...uuid.UUID) {
	t.Helper()
	evt, err := events.New(eventType, chatId, targets, map[string]string{"k": "v"})
	require.NoError(t, err)
	f.broker.Publish(context.Background(), evt)
}

func TestGatewayForwardsOnlyAuthorizedEvents(t *testing.T) {
	user, chatA, chatB := uuid.New(), uuid.New(), uuid.New()
	f := newGatewayFixture(t, staticChats{user: {chatA}})
	conn, _ := f.connect(t, user)
	defer conn.Close()

	f.publish(t, events.MessageSent, chatB)
	f.publish(t, events.MessageSent, chatA)

	frame := conn.frame(t)
	assert.Equal(t, string(events.MessageSent), frame.Type)
	require.NotNil(t, frame.ChatId)
	assert.Equal(t, chatA, *frame.ChatId)
	assert.JSONEq(t, `{"k":"v"}`, string(frame.Data))
	conn.silent(t)
}

func TestGatewayLearnsNewChatsFromEvents(t *testing.T) {
	user, chat := uuid.New(), uuid.New()
	f := newGatewayFixture(t, staticChats{})
	conn, _ := f.connect(t, user)
	defer conn.Close()

	f.publish(t, events.ChatCreated, chat, user)
	f.publish(t, events.MessageSent, chat)

	// Different event kinds travel on separate streams, so only the set is fixed.
	got := []string{conn.frame(t).Type, conn.frame(t).Type}
	assert.ElementsMatch(t, []string{string(events.ChatCreated), string(events.MessageSent)}, got)

	f.publish(t, events.ChatDeleted, chat, user)
	assert.Equal(t, string(events.ChatDeleted), conn.frame(t).Type)
	f.publish(t, events.MessageSent, chat)
	conn.silent(t)
}

func TestGatewayKeepsEventsPublishedWhileLoadingChats(t *testing.T) {
	user, chat := uuid.New(), uuid.New()

	// The chat is created after the user's chat list was read but before the
	// list is returned, so the snapshot does not contain it.
	var f *gatewayFixture
	f = newGatewayFixture(t, chatListerFunc(func(ctx context.Context, userId uuid.UUID) ([]uuid.UUID, error) {
		evt, err := events.New(events.ChatCreated, chat, []uuid.UUID{userId}, map[string]string{"k": "v"})
		if err != nil {
			return nil, err
		}
		f.broker.Publish(ctx, evt)
		if !assert.Eventually(t, func() bool { return f.source.offered.Load() >= 1 }, 2*time.Second, 5*time.Millisecond) {
			return nil, errors.New("chat-created was never offered to the session")
		}
		return nil, nil
	}))
	conn, _ := f.connect(t, user)
	defer conn.Close()

	f.publish(t, events.MessageSent, chat)

	got := []string{conn.frame(t).Type, conn.frame(t).Type}
	assert.ElementsMatch(t, []string{string(events.ChatCreated), string(events.MessageSent)}, got)
	conn.silent(t)
}

func TestGatewayCommands(t *testing.T) {
	user, chat := uuid.New(), uuid.New()
	f := newGatewayFixture(t, staticChats{user: {chat}})
	conn, _ := f.connect(t, user)
	defer conn.Close()

	conn.command(t, Command{Action: "subscribe", ChatId: uuid.New()})
	assert.Equal(t, "error", conn.frame(t).Type)

	conn.command(t, Command{Action: "subscribe", ChatId: chat})
	assert.Equal(t, "subscribed", conn.frame(t).Type)

	conn.command(t, Command{Action: "mark_read", ChatId: chat})
	frame := conn.frame(t)
	assert.Equal(t, "read", frame.Type)
	f.reads.mu.Lock()
	assert.Equal(t, []uuid.UUID{chat}, f.reads.chats)
	f.reads.mu.Unlock()

	conn.command(t, Command{Action: "dance"})
	assert.Equal(t, "error", conn.frame(t).Type)
}

func TestGatewayReleasesSessionOnDisconnect(t *testing.T) {
	user := uuid.New()
	f := newGatewayFixture(t, staticChats{})
	conn, done := f.connect(t, user)

	require.NoError(t, conn.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after disconnect")
	}
	require.Eventually(t, func() bool { return f.hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// Publishing after the session is gone must not block.
	f.publish(t, events.ChatCreated, uuid.New(), user)
}
