package specification

import (
	"school-portal-be/internal/entity"
	"school-portal-be/internal/repository/scope"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatID struct {
	ChatID uuid.UUID
}

func (s ByChatID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_id = ?", s.ChatID)
}

type ByChatType struct {
	Type entity.ChatType
}

func (s ByChatType) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("type = ?", string(s.Type))
}

type ByPairKey struct {
	PairKey string
}

func (s ByPairKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("pair_key = ?", s.PairKey)
}

type BySingletonKey struct {
	SingletonKey string
}

func (s BySingletonKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("singleton_key = ?", s.SingletonKey)
}

// ParticipatedBy keeps chats the user is an active participant of.
type ParticipatedBy struct {
	UserID uuid.UUID
}

func (s ParticipatedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id IN (?)", activeMemberships(db, s.UserID))
}

// NotParticipatedBy keeps chats the user is not (or no longer) part of.
type NotParticipatedBy struct {
	UserID uuid.UUID
}

func (s NotParticipatedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id NOT IN (?)", activeMemberships(db, s.UserID))
}

func activeMemberships(db *gorm.DB, userID uuid.UUID) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Table("chat_participants").
		Select("chat_id").
		Where("user_id = ? AND deleted_at IS NULL", userID)
}

// Participant specifications

type ByUserID struct {
	UserID uuid.UUID
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByUserIDs struct {
	UserIDs []uuid.UUID
}

func (s ByUserIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id IN ?", s.UserIDs)
}

// Message specifications

// ThreadRoots keeps messages without a live parent. A reply whose parent was
// deleted becomes a root of its own.
type ThreadRoots struct{}

func (s ThreadRoots) Apply(db *gorm.DB) *gorm.DB {
	live := db.Session(&gorm.Session{NewDB: true}).
		Table("messages").
		Select("id").
		Where("deleted_at IS NULL")
	return db.Where("(parent_message_id IS NULL OR parent_message_id NOT IN (?))", live)
}

type ByParentMessageIDs struct {
	ParentIDs []uuid.UUID
}

func (s ByParentMessageIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("parent_message_id IN ?", s.ParentIDs)
}

// Chronological orders messages by commit time, tie-broken by id.
type Chronological struct {
	Desc bool
}

func (s Chronological) Apply(db *gorm.DB) *gorm.DB {
	if s.Desc {
		return scope.OrderByCreatedDesc(db)
	}
	return scope.OrderByCreatedAsc(db)
}
