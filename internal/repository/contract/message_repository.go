package contract

import (
	"context"

	"school-portal-be/internal/entity"
	"school-portal-be/internal/repository/specification"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByChatId(ctx context.Context, chatId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	// ActivityFor covers only chats in chatIds that have live messages.
	ActivityFor(ctx context.Context, userId uuid.UUID, chatIds []uuid.UUID) (map[uuid.UUID]*entity.ChatActivity, error)
}
