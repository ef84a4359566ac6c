package dto

import (
	"time"

	"github.com/google/uuid"
)

type SendMessageRequest struct {
	ChatId          uuid.UUID  `json:"chat_id" validate:"required"`
	Content         string     `json:"content" validate:"required,max=4000"`
	ParentMessageId *uuid.UUID `json:"parent_message_id"`
	ClientMessageId string     `json:"client_message_id" validate:"omitempty,max=64"`
}

// ListMessagesRequest: Depth 0 returns a flat page, 1 nests direct replies under
// top-level messages, -1 nests whole threads.
type ListMessagesRequest struct {
	ChatId uuid.UUID  `query:"-" validate:"required"`
	Order  string     `query:"order" validate:"omitempty,oneof=asc desc"`
	Limit  int        `query:"limit" validate:"omitempty,min=1,max=200"`
	Before *time.Time `query:"-"`
	Depth  int        `query:"depth" validate:"min=-1"`
}

type SenderResponse struct {
	Id       uuid.UUID `json:"id"`
	FullName string    `json:"full_name,omitempty"`
	Role     string    `json:"role,omitempty"`
}

type MessageResponse struct {
	Id              uuid.UUID          `json:"id"`
	ChatId          uuid.UUID          `json:"chat_id"`
	Sender          SenderResponse     `json:"sender"`
	Content         string             `json:"content"`
	ParentMessageId *uuid.UUID         `json:"parent_message_id"`
	CreatedAt       time.Time          `json:"created_at"`
	Replies         []*MessageResponse `json:"replies,omitempty"`
}

type MarkReadRequest struct {
	ChatId uuid.UUID `json:"chat_id" validate:"required"`
}

type MarkReadResponse struct {
	ChatId   uuid.UUID `json:"chat_id"`
	LastSeen time.Time `json:"last_seen"`
}
