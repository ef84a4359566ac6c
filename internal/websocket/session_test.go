package websocket

import (
	"testing"

	"school-portal-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(t *testing.T, eventType events.Type, chatId uuid.UUID, targets ...uuid.UUID) events.Event {
	t.Helper()
	evt, err := events.New(eventType, chatId, targets, nil)
	assert.NoError(t, err)
	return evt
}

func TestSessionForwardsMessagesOnlyForMemberChats(t *testing.T) {
	user, mine, other := uuid.New(), uuid.New(), uuid.New()
	s := NewSession(user, []uuid.UUID{mine})

	assert.True(t, s.Accepts(event(t, events.MessageSent, mine)))
	assert.False(t, s.Accepts(event(t, events.MessageSent, other)))
}

func TestSessionTargetedEvents(t *testing.T) {
	user, someone, chat := uuid.New(), uuid.New(), uuid.New()
	s := NewSession(user, nil)

	assert.False(t, s.Accepts(event(t, events.ChatCreated, chat, someone)))
	assert.False(t, s.Accepts(event(t, events.ParticipantAdded, chat, someone)))

	created := event(t, events.ChatCreated, chat, user, someone)
	assert.True(t, s.Admit(created))
	assert.True(t, s.IsMember(chat))
	assert.True(t, s.Accepts(event(t, events.MessageSent, chat)))

	// Members see others joining their chats.
	assert.True(t, s.Accepts(event(t, events.ParticipantAdded, chat, someone)))
}

func TestSessionShrinksOnRemovalAndDeletion(t *testing.T) {
	user, someone, a, b := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	s := NewSession(user, []uuid.UUID{a, b})

	assert.True(t, s.Admit(event(t, events.ParticipantRemoved, a, someone)))
	assert.True(t, s.IsMember(a), "someone else leaving keeps the chat")

	assert.True(t, s.Admit(event(t, events.ParticipantRemoved, a, user)))
	assert.False(t, s.IsMember(a))
	assert.False(t, s.Accepts(event(t, events.MessageSent, a)))

	assert.True(t, s.Admit(event(t, events.ChatDeleted, b, user)))
	assert.False(t, s.IsMember(b))
}

func TestSessionWatchNarrowsMessages(t *testing.T) {
	user, a, b := uuid.New(), uuid.New(), uuid.New()
	s := NewSession(user, []uuid.UUID{a, b})

	assert.False(t, s.Watch(uuid.New()))
	assert.True(t, s.Watch(a))
	assert.True(t, s.Accepts(event(t, events.MessageSent, a)))
	assert.False(t, s.Accepts(event(t, events.MessageSent, b)))

	s.Unwatch(a)
	assert.True(t, s.Accepts(event(t, events.MessageSent, b)))
}

func TestPendingSessionReplaysAgainstSnapshot(t *testing.T) {
	user, known, joined, stranger := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	s := NewPendingSession(user)

	queued := []events.Event{
		event(t, events.MessageSent, known),
		event(t, events.ChatCreated, joined, user),
		event(t, events.MessageSent, joined),
		event(t, events.MessageSent, stranger),
	}
	for _, evt := range queued {
		assert.False(t, s.Admit(evt), "nothing is delivered before the snapshot")
	}
	assert.False(t, s.IsMember(known))

	admitted, err := s.Sync([]uuid.UUID{known})
	require.NoError(t, err)
	assert.Equal(t, queued[:3], admitted)
	assert.True(t, s.IsMember(joined))
	assert.True(t, s.Admit(event(t, events.MessageSent, joined)))
}

func TestPendingSessionOverflow(t *testing.T) {
	user, chat := uuid.New(), uuid.New()
	s := NewPendingSession(user)
	for i := 0; i <= maxPendingEvents; i++ {
		s.Admit(event(t, events.MessageSent, chat))
	}

	_, err := s.Sync([]uuid.UUID{chat})
	assert.ErrorIs(t, err, ErrPendingOverflow)
}
