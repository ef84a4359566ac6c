package unitofwork

import (
	"context"

	"school-portal-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatRepository() contract.ChatRepository
	ChatParticipantRepository() contract.ChatParticipantRepository
	MessageRepository() contract.MessageRepository
}
