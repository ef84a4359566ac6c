package websocket

import (
	"errors"
	"sync"

	"school-portal-be/pkg/events"

	"github.com/google/uuid"
)

// maxPendingEvents bounds what a session holds while its chat snapshot loads.
const maxPendingEvents = 1024

var ErrPendingOverflow = errors.New("websocket: too many events arrived before the chat snapshot")

// Session is the per-connection view of what one user may see: the chats they
// participate in and, optionally, the subset they are currently watching.
type Session struct {
	UserID uuid.UUID

	mu       sync.RWMutex
	chats    map[uuid.UUID]struct{}
	watching map[uuid.UUID]struct{} // empty means every authorized chat

	synced   bool
	pending  []events.Event
	overflow bool
}

// NewSession returns a session already authorized for chatIDs.
func NewSession(userID uuid.UUID, chatIDs []uuid.UUID) *Session {
	s := NewPendingSession(userID)
	for _, id := range chatIDs {
		s.chats[id] = struct{}{}
	}
	s.synced = true
	return s
}

// NewPendingSession returns a session that queues every event it is offered
// until Sync supplies the chat snapshot.
func NewPendingSession(userID uuid.UUID) *Session {
	return &Session{
		UserID:   userID,
		chats:    make(map[uuid.UUID]struct{}),
		watching: make(map[uuid.UUID]struct{}),
	}
}

// Sync merges the chat snapshot and replays the queued events in arrival
// order. It returns the queued events that passed the filter.
func (s *Session) Sync(chatIDs []uuid.UUID) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range chatIDs {
		s.chats[id] = struct{}{}
	}

	pending := s.pending
	s.pending = nil
	s.synced = true
	if s.overflow {
		return nil, ErrPendingOverflow
	}

	admitted := make([]events.Event, 0, len(pending))
	for _, evt := range pending {
		if s.accepts(evt) {
			s.apply(evt)
			admitted = append(admitted, evt)
		}
	}
	return admitted, nil
}

// Accepts reports whether evt may be forwarded to this connection.
func (s *Session) Accepts(evt events.Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accepts(evt)
}

func (s *Session) accepts(evt events.Event) bool {
	_, member := s.chats[evt.ChatId]
	targeted := evt.IsTargeted(s.UserID)

	switch evt.Type {
	case events.MessageSent:
		if !member {
			return false
		}
		if len(s.watching) == 0 {
			return true
		}
		_, ok := s.watching[evt.ChatId]
		return ok
	case events.ChatCreated:
		return targeted
	case events.ParticipantAdded, events.ParticipantRemoved, events.ChatDeleted:
		return targeted || member
	default:
		return false
	}
}

// Apply updates the authorized chat set after evt has been accepted.
func (s *Session) Apply(evt events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(evt)
}

func (s *Session) apply(evt events.Event) {
	switch evt.Type {
	case events.ChatCreated, events.ParticipantAdded:
		if evt.IsTargeted(s.UserID) {
			s.chats[evt.ChatId] = struct{}{}
		}
	case events.ParticipantRemoved:
		if evt.IsTargeted(s.UserID) {
			delete(s.chats, evt.ChatId)
			delete(s.watching, evt.ChatId)
		}
	case events.ChatDeleted:
		delete(s.chats, evt.ChatId)
		delete(s.watching, evt.ChatId)
	}
}

// Watch narrows message delivery to chatID. It fails for chats the user is not in.
func (s *Session) Watch(chatID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return false
	}
	s.watching[chatID] = struct{}{}
	return true
}

func (s *Session) Unwatch(chatID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watching, chatID)
}

func (s *Session) IsMember(chatID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chats[chatID]
	return ok
}

// Admit is the broker filter for this session: accepted events immediately
// update the chat set, so a message that follows a chat-created event for the
// same chat is already authorized. Before Sync every event is queued and
// withheld from the stream.
func (s *Session) Admit(evt events.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.synced {
		if len(s.pending) >= maxPendingEvents {
			s.overflow = true
		} else {
			s.pending = append(s.pending, evt)
		}
		return false
	}
	if !s.accepts(evt) {
		return false
	}
	s.apply(evt)
	return true
}
