package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatParticipant is keyed by (chat_id, user_id); a user who leaves keeps the
// soft-deleted row and gets it restored on rejoin.
type ChatParticipant struct {
	ChatId    uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Role      string    `gorm:"type:varchar(20);not null"`
	LastSeen  *time.Time
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (ChatParticipant) TableName() string {
	return "chat_participants"
}
