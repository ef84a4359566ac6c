package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Chat struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Type         string         `gorm:"type:varchar(20);not null;index"`
	Name         *string        `gorm:"type:varchar(255)"`
	ClassRef     *uuid.UUID     `gorm:"type:uuid;index"`
	SubjectRef   *uuid.UUID     `gorm:"type:uuid;index"`
	PairKey      *string        `gorm:"type:varchar(80);uniqueIndex:ux_chats_pair_key"`      // canonical user pair, private chats only
	SingletonKey *string        `gorm:"type:varchar(80);uniqueIndex:ux_chats_singleton_key"` // "<type>:<ref>", class and subject chats only
	CreatedBy    uuid.UUID      `gorm:"type:uuid;not null"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (Chat) TableName() string {
	return "chats"
}

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.Id == uuid.Nil {
		c.Id = uuid.New()
	}
	return nil
}
