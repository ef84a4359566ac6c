package contract

import (
	"context"
	"time"

	"school-portal-be/internal/entity"
	"school-portal-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatParticipantRepository interface {
	Create(ctx context.Context, participant *entity.ChatParticipant) error
	CreateBulk(ctx context.Context, participants []*entity.ChatParticipant) error
	// Restore reactivates a soft-deleted membership; false when there was none.
	Restore(ctx context.Context, chatId, userId uuid.UUID, role entity.ParticipantRole) (bool, error)
	UpdateLastSeen(ctx context.Context, chatId, userId uuid.UUID, at time.Time) error
	Delete(ctx context.Context, chatId, userId uuid.UUID) error
	DeleteByChatId(ctx context.Context, chatId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatParticipant, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatParticipant, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
