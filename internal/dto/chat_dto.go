package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateChatRequest carries the payload of every chat type; which fields are
// read depends on Type.
type CreateChatRequest struct {
	Type           string      `json:"type" validate:"required,oneof=private group class subject public_group"`
	Name           *string     `json:"name"`
	ParticipantIds []uuid.UUID `json:"participant_ids"`
	ClassId        *uuid.UUID  `json:"class_id"`
	SubjectId      *uuid.UUID  `json:"subject_id"`
}

type PrivateChatRequest struct {
	UserId uuid.UUID `json:"user_id" validate:"required"`
}

type AddParticipantsRequest struct {
	ChatId  uuid.UUID
	UserIds []uuid.UUID `json:"user_ids" validate:"required,min=1"`
}

type AddParticipantsResponse struct {
	ChatId uuid.UUID   `json:"chat_id"`
	Added  []uuid.UUID `json:"added"`
}

type ParticipantResponse struct {
	UserId   uuid.UUID  `json:"user_id"`
	FullName string     `json:"full_name,omitempty"`
	Role     string     `json:"role"`
	LastSeen *time.Time `json:"last_seen"`
	JoinedAt time.Time  `json:"joined_at"`
}

type ChatResponse struct {
	Id           uuid.UUID              `json:"id"`
	Type         string                 `json:"type"`
	Name         *string                `json:"name"`
	ClassRef     *uuid.UUID             `json:"class_ref,omitempty"`
	SubjectRef   *uuid.UUID             `json:"subject_ref,omitempty"`
	CreatedBy    uuid.UUID              `json:"created_by"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    *time.Time             `json:"updated_at"`
	Participants []*ParticipantResponse `json:"participants,omitempty"`
}

type ChatSummaryResponse struct {
	ChatResponse
	UnreadCount   int64      `json:"unread_count"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

type JoinableChatResponse struct {
	Id               uuid.UUID `json:"id"`
	Name             *string   `json:"name"`
	ParticipantCount int64     `json:"participant_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// Event payloads

type ParticipantEventData struct {
	ChatId uuid.UUID `json:"chat_id"`
	UserId uuid.UUID `json:"user_id"`
	Role   string    `json:"role,omitempty"`
	By     uuid.UUID `json:"by"`
}

type ChatDeletedEventData struct {
	ChatId    uuid.UUID `json:"chat_id"`
	DeletedBy uuid.UUID `json:"deleted_by"`
}
