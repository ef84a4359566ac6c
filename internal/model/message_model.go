package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Message struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ChatId          uuid.UUID      `gorm:"type:uuid;not null;index:idx_messages_chat_created,priority:1"`
	SenderId        uuid.UUID      `gorm:"type:uuid;not null;index"`
	Content         string         `gorm:"type:text;not null"`
	ParentMessageId *uuid.UUID     `gorm:"type:uuid;index"` // lookup key only, no foreign key
	CreatedAt       time.Time      `gorm:"autoCreateTime;index:idx_messages_chat_created,priority:2"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns a time-ordered id so equal timestamps still sort in
// insertion order.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.Id == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.Id = id
	}
	return nil
}
