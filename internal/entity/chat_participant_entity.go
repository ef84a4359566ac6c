package entity

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantRole string

const (
	ParticipantRoleAdmin  ParticipantRole = "admin"
	ParticipantRoleMember ParticipantRole = "member"
)

type ChatParticipant struct {
	ChatId    uuid.UUID
	UserId    uuid.UUID
	Role      ParticipantRole
	LastSeen  *time.Time
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

func (p *ChatParticipant) IsAdmin() bool {
	return p != nil && p.Role == ParticipantRoleAdmin
}
