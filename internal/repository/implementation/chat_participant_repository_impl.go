package implementation

import (
	"context"
	"errors"
	"time"

	"school-portal-be/internal/entity"
	"school-portal-be/internal/mapper"
	"school-portal-be/internal/model"
	"school-portal-be/internal/repository/contract"
	"school-portal-be/internal/repository/scope"
	"school-portal-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatParticipantRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatParticipantRepository(db *gorm.DB) contract.ChatParticipantRepository {
	return &ChatParticipantRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatParticipantRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatParticipantRepositoryImpl) Create(ctx context.Context, participant *entity.ChatParticipant) error {
	m := r.mapper.ParticipantToModel(participant)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return translateError(err)
	}
	*participant = *r.mapper.ParticipantToEntity(m)
	return nil
}

func (r *ChatParticipantRepositoryImpl) CreateBulk(ctx context.Context, participants []*entity.ChatParticipant) error {
	if len(participants) == 0 {
		return nil
	}
	models := make([]*model.ChatParticipant, len(participants))
	for i, p := range participants {
		models[i] = r.mapper.ParticipantToModel(p)
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return translateError(err)
	}
	for i, m := range models {
		*participants[i] = *r.mapper.ParticipantToEntity(m)
	}
	return nil
}

func (r *ChatParticipantRepositoryImpl) Restore(ctx context.Context, chatId, userId uuid.UUID, role entity.ParticipantRole) (bool, error) {
	res := scope.IncludeDeleted(r.db.WithContext(ctx)).
		Model(&model.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ? AND deleted_at IS NOT NULL", chatId, userId).
		Updates(map[string]interface{}{
			"deleted_at": nil,
			"role":       string(role),
			"last_seen":  nil,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ChatParticipantRepositoryImpl) UpdateLastSeen(ctx context.Context, chatId, userId uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatId, userId).
		Update("last_seen", at).Error
}

func (r *ChatParticipantRepositoryImpl) Delete(ctx context.Context, chatId, userId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatId, userId).
		Delete(&model.ChatParticipant{}).Error
}

func (r *ChatParticipantRepositoryImpl) DeleteByChatId(ctx context.Context, chatId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("chat_id = ?", chatId).Delete(&model.ChatParticipant{}).Error
}

func (r *ChatParticipantRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatParticipant, error) {
	var m model.ChatParticipant
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ParticipantToEntity(&m), nil
}

func (r *ChatParticipantRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatParticipant, error) {
	var models []*model.ChatParticipant
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatParticipant{}), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ChatParticipant, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ParticipantToEntity(m)
	}
	return entities, nil
}

func (r *ChatParticipantRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatParticipant{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
