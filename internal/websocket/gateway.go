package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"school-portal-be/internal/broker"
	"school-portal-be/internal/dto"
	"school-portal-be/internal/entity"
	"school-portal-be/internal/pkg/logger"
	"school-portal-be/pkg/events"

	"github.com/google/uuid"
)

const gatewayModule = "SubscriptionGateway"

type EventSource interface {
	Subscribe(ctx context.Context, eventType events.Type, filter broker.Filter) (<-chan events.Event, error)
}

type ChatLister interface {
	ListChatIdsForUser(ctx context.Context, userId uuid.UUID) ([]uuid.UUID, error)
}

type ReadMarker interface {
	MarkRead(ctx context.Context, principal entity.Principal, chatId uuid.UUID) (*dto.MarkReadResponse, error)
}

// Frame is what the gateway writes to the socket.
type Frame struct {
	Type       string          `json:"type"`
	ChatId     *uuid.UUID      `json:"chat_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	OccurredAt *time.Time      `json:"occurred_at,omitempty"`
}

// Command is what clients may send: subscribe/unsubscribe narrow message
// delivery to specific chats, mark_read advances the caller's last-seen.
type Command struct {
	Action string    `json:"action"`
	ChatId uuid.UUID `json:"chat_id"`
}

type Gateway struct {
	hub        *Hub
	source     EventSource
	chats      ChatLister
	reads      ReadMarker
	logger     logger.ILogger
	sendBuffer int
}

func NewGateway(hub *Hub, source EventSource, chats ChatLister, reads ReadMarker, log logger.ILogger, sendBuffer int) *Gateway {
	return &Gateway{
		hub:        hub,
		source:     source,
		chats:      chats,
		reads:      reads,
		logger:     log,
		sendBuffer: sendBuffer,
	}
}

// Serve runs one authenticated connection until either side closes it.
//
// Subscriptions open before the chat snapshot is read so that nothing
// published in between is lost: the session queues those events and replays
// them against the snapshot once it arrives.
func (g *Gateway) Serve(conn Conn, principal entity.Principal) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := NewPendingSession(principal.UserId)
	client := newClient(g.hub, conn, principal, session, g.sendBuffer, g.logger)

	// Subscriptions are released by cancel when the connection goes away.
	streams := make([]<-chan events.Event, 0, len(events.AllTypes))
	for _, eventType := range events.AllTypes {
		stream, err := g.source.Subscribe(ctx, eventType, session.Admit)
		if err != nil {
			g.logger.Error(gatewayModule, "Failed to subscribe", map[string]interface{}{
				"error":      err,
				"event_type": eventType,
			})
			client.Close()
			return
		}
		streams = append(streams, stream)
	}

	chatIds, err := g.chats.ListChatIdsForUser(ctx, principal.UserId)
	if err != nil {
		g.logger.Error(gatewayModule, "Failed to load authorized chats", map[string]interface{}{
			"error":   err,
			"user_id": principal.UserId,
		})
		client.Close()
		return
	}

	backlog, err := session.Sync(chatIds)
	if err != nil {
		g.logger.Warn(gatewayModule, "Dropping connection during sync", map[string]interface{}{
			"error":   err.Error(),
			"user_id": principal.UserId,
		})
		client.Close()
		return
	}
	for _, evt := range backlog {
		if !g.write(client, eventFrame(evt)) {
			return
		}
	}
	for _, stream := range streams {
		go g.forward(client, stream)
	}

	if !g.hub.Register(client) {
		client.Close()
		return
	}
	defer g.hub.Unregister(client)

	g.logger.Info(gatewayModule, "Session started", map[string]interface{}{
		"user_id": principal.UserId,
		"chats":   len(chatIds),
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.writePump()
	}()

	client.readPump(func(data []byte) {
		g.handleCommand(ctx, client, data)
	})
	client.Close()
	wg.Wait()

	g.logger.Info(gatewayModule, "Session ended", map[string]interface{}{"user_id": principal.UserId})
}

func (g *Gateway) forward(client *Client, stream <-chan events.Event) {
	for {
		select {
		case <-client.Done():
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			if !g.write(client, eventFrame(evt)) {
				return
			}
		}
	}
}

func eventFrame(evt events.Event) Frame {
	at := evt.OccurredAt
	chatId := evt.ChatId
	return Frame{
		Type:       string(evt.Type),
		ChatId:     &chatId,
		Data:       evt.Data,
		OccurredAt: &at,
	}
}

func (g *Gateway) handleCommand(ctx context.Context, client *Client, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		g.write(client, Frame{Type: "error", Error: "malformed command"})
		return
	}
	chatId := cmd.ChatId

	switch cmd.Action {
	case "subscribe":
		if !client.Session.Watch(chatId) {
			g.write(client, Frame{Type: "error", ChatId: &chatId, Error: "not a participant of this chat"})
			return
		}
		g.write(client, Frame{Type: "subscribed", ChatId: &chatId})

	case "unsubscribe":
		client.Session.Unwatch(chatId)
		g.write(client, Frame{Type: "unsubscribed", ChatId: &chatId})

	case "mark_read":
		if !client.Session.IsMember(chatId) {
			g.write(client, Frame{Type: "error", ChatId: &chatId, Error: "not a participant of this chat"})
			return
		}
		res, err := g.reads.MarkRead(ctx, client.Principal, chatId)
		if err != nil {
			g.logger.Warn(gatewayModule, "mark_read failed", map[string]interface{}{
				"error":   err.Error(),
				"chat_id": chatId,
			})
			g.write(client, Frame{Type: "error", ChatId: &chatId, Error: "mark_read failed"})
			return
		}
		payload, _ := json.Marshal(res)
		g.write(client, Frame{Type: "read", ChatId: &chatId, Data: payload})

	default:
		g.write(client, Frame{Type: "error", Error: "unknown action " + cmd.Action})
	}
}

func (g *Gateway) write(client *Client, frame Frame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		g.logger.Error(gatewayModule, "Failed to encode frame", map[string]interface{}{"error": err})
		return true
	}
	return client.Enqueue(data)
}
