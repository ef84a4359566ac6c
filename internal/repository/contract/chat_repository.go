package contract

import (
	"context"

	"school-portal-be/internal/entity"
	"school-portal-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error // ErrDuplicateKey on pair/singleton key clash
	Delete(ctx context.Context, id uuid.UUID) error      // Soft delete, releases uniqueness keys
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chat, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chat, error)
}
