package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type is the event kind; it doubles as the broker topic.
type Type string

const (
	MessageSent        Type = "message-sent"
	ChatCreated        Type = "chat-created"
	ParticipantAdded   Type = "participant-added"
	ParticipantRemoved Type = "participant-removed"
	ChatDeleted        Type = "chat-deleted"
)

var AllTypes = []Type{MessageSent, ChatCreated, ParticipantAdded, ParticipantRemoved, ChatDeleted}

// Event is the unit carried by the broker. ChatId is the ordering key; Targets
// narrows user-addressed kinds (chat-created, participant-*) to specific users.
type Event struct {
	Id         uuid.UUID       `json:"id"`
	Type       Type            `json:"type"`
	ChatId     uuid.UUID       `json:"chat_id"`
	Targets    []uuid.UUID     `json:"targets,omitempty"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func New(eventType Type, chatId uuid.UUID, targets []uuid.UUID, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Id:         uuid.New(),
		Type:       eventType,
		ChatId:     chatId,
		Targets:    targets,
		Data:       raw,
		OccurredAt: time.Now(),
	}, nil
}

func (e Event) Topic() string {
	return "chat." + string(e.Type)
}

// Key is the ordering key: events sharing a key are delivered in publish order.
func (e Event) Key() string {
	return e.ChatId.String()
}

func (e Event) IsTargeted(userId uuid.UUID) bool {
	for _, t := range e.Targets {
		if t == userId {
			return true
		}
	}
	return false
}

func TopicOf(eventType Type) string {
	return "chat." + string(eventType)
}
