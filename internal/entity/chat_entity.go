package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatType string

const (
	ChatTypePrivate     ChatType = "private"
	ChatTypeGroup       ChatType = "group"
	ChatTypeClass       ChatType = "class"
	ChatTypeSubject     ChatType = "subject"
	ChatTypePublicGroup ChatType = "public_group"
)

func (t ChatType) IsValid() bool {
	switch t {
	case ChatTypePrivate, ChatTypeGroup, ChatTypeClass, ChatTypeSubject, ChatTypePublicGroup:
		return true
	}
	return false
}

// IsStructural reports whether membership of the chat is fixed at creation
// time and cannot be extended ad hoc.
func (t ChatType) IsStructural() bool {
	return t == ChatTypePrivate || t == ChatTypeClass || t == ChatTypeSubject
}

type Chat struct {
	Id           uuid.UUID
	Type         ChatType
	Name         *string
	ClassRef     *uuid.UUID
	SubjectRef   *uuid.UUID
	PairKey      *string
	SingletonKey *string
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
	IsDeleted    bool
}
