package entity

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	Id              uuid.UUID
	ChatId          uuid.UUID
	SenderId        uuid.UUID
	Content         string
	ParentMessageId *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	DeletedAt       *time.Time
	IsDeleted       bool
}

// ChatActivity summarizes a chat's live messages for one reader.
type ChatActivity struct {
	ChatId        uuid.UUID
	UnreadCount   int64
	LastMessageAt *time.Time
}
