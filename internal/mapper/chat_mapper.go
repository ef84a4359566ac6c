package mapper

import (
	"time"

	"school-portal-be/internal/entity"
	"school-portal-be/internal/model"

	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func toDeletedAt(deletedAt *time.Time, isDeleted bool) gorm.DeletedAt {
	if deletedAt != nil {
		return gorm.DeletedAt{Time: *deletedAt, Valid: true}
	}
	if isDeleted {
		return gorm.DeletedAt{Time: time.Now(), Valid: true}
	}
	return gorm.DeletedAt{}
}

func fromDeletedAt(d gorm.DeletedAt) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func fromUpdatedAt(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toUpdatedAt(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// Chat Mappers

func (m *ChatMapper) ChatToEntity(c *model.Chat) *entity.Chat {
	if c == nil {
		return nil
	}

	return &entity.Chat{
		Id:           c.Id,
		Type:         entity.ChatType(c.Type),
		Name:         c.Name,
		ClassRef:     c.ClassRef,
		SubjectRef:   c.SubjectRef,
		PairKey:      c.PairKey,
		SingletonKey: c.SingletonKey,
		CreatedBy:    c.CreatedBy,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    fromUpdatedAt(c.UpdatedAt),
		DeletedAt:    fromDeletedAt(c.DeletedAt),
		IsDeleted:    c.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ChatToModel(c *entity.Chat) *model.Chat {
	if c == nil {
		return nil
	}

	return &model.Chat{
		Id:           c.Id,
		Type:         string(c.Type),
		Name:         c.Name,
		ClassRef:     c.ClassRef,
		SubjectRef:   c.SubjectRef,
		PairKey:      c.PairKey,
		SingletonKey: c.SingletonKey,
		CreatedBy:    c.CreatedBy,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    toUpdatedAt(c.UpdatedAt),
		DeletedAt:    toDeletedAt(c.DeletedAt, c.IsDeleted),
	}
}

// Participant Mappers

func (m *ChatMapper) ParticipantToEntity(p *model.ChatParticipant) *entity.ChatParticipant {
	if p == nil {
		return nil
	}

	return &entity.ChatParticipant{
		ChatId:    p.ChatId,
		UserId:    p.UserId,
		Role:      entity.ParticipantRole(p.Role),
		LastSeen:  p.LastSeen,
		CreatedAt: p.CreatedAt,
		UpdatedAt: fromUpdatedAt(p.UpdatedAt),
		DeletedAt: fromDeletedAt(p.DeletedAt),
		IsDeleted: p.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ParticipantToModel(p *entity.ChatParticipant) *model.ChatParticipant {
	if p == nil {
		return nil
	}

	return &model.ChatParticipant{
		ChatId:    p.ChatId,
		UserId:    p.UserId,
		Role:      string(p.Role),
		LastSeen:  p.LastSeen,
		CreatedAt: p.CreatedAt,
		UpdatedAt: toUpdatedAt(p.UpdatedAt),
		DeletedAt: toDeletedAt(p.DeletedAt, p.IsDeleted),
	}
}

// Message Mappers

func (m *ChatMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	return &entity.Message{
		Id:              msg.Id,
		ChatId:          msg.ChatId,
		SenderId:        msg.SenderId,
		Content:         msg.Content,
		ParentMessageId: msg.ParentMessageId,
		CreatedAt:       msg.CreatedAt,
		UpdatedAt:       fromUpdatedAt(msg.UpdatedAt),
		DeletedAt:       fromDeletedAt(msg.DeletedAt),
		IsDeleted:       msg.DeletedAt.Valid,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	return &model.Message{
		Id:              msg.Id,
		ChatId:          msg.ChatId,
		SenderId:        msg.SenderId,
		Content:         msg.Content,
		ParentMessageId: msg.ParentMessageId,
		CreatedAt:       msg.CreatedAt,
		UpdatedAt:       toUpdatedAt(msg.UpdatedAt),
		DeletedAt:       toDeletedAt(msg.DeletedAt, msg.IsDeleted),
	}
}
