package implementation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"school-portal-be/internal/entity"
	"school-portal-be/internal/mapper"
	"school-portal-be/internal/model"
	"school-portal-be/internal/repository/contract"
	"school-portal-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *MessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *entity.Message) error {
	m := r.mapper.MessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return translateError(err)
	}
	*message = *r.mapper.MessageToEntity(m)
	return nil
}

func (r *MessageRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Message{}).Error
}

func (r *MessageRepositoryImpl) DeleteByChatId(ctx context.Context, chatId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("chat_id = ?", chatId).Delete(&model.Message{}).Error
}

func (r *MessageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error) {
	var m model.Message
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.MessageToEntity(&m), nil
}

func (r *MessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	var models []*model.Message
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Message{}), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Message, len(models))
	for i, m := range models {
		entities[i] = r.mapper.MessageToEntity(m)
	}
	return entities, nil
}

// ActivityFor counts the messages userId has not seen and finds the latest
// message time, for every chat in chatIds, in one grouped query.
func (r *MessageRepositoryImpl) ActivityFor(ctx context.Context, userId uuid.UUID, chatIds []uuid.UUID) (map[uuid.UUID]*entity.ChatActivity, error) {
	result := make(map[uuid.UUID]*entity.ChatActivity, len(chatIds))
	if len(chatIds) == 0 {
		return result, nil
	}

	rows, err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select(`messages.chat_id,
			COUNT(CASE WHEN messages.sender_id <> ? AND (chat_participants.last_seen IS NULL OR messages.created_at > chat_participants.last_seen) THEN 1 END),
			MAX(messages.created_at)`, userId).
		Joins("JOIN chat_participants ON chat_participants.chat_id = messages.chat_id AND chat_participants.user_id = ? AND chat_participants.deleted_at IS NULL", userId).
		Where("messages.chat_id IN ?", chatIds).
		Group("messages.chat_id").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			activity entity.ChatActivity
			latest   aggregateTime
		)
		if err := rows.Scan(&activity.ChatId, &activity.UnreadCount, &latest); err != nil {
			return nil, err
		}
		if latest.Valid {
			at := latest.Time
			activity.LastMessageAt = &at
		}
		result[activity.ChatId] = &activity
	}
	return result, rows.Err()
}

// aggregateTime scans MAX over a timestamp column. SQLite returns aggregates
// without the column type, so the value may arrive as text.
type aggregateTime struct {
	Time  time.Time
	Valid bool
}

var aggregateTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (t *aggregateTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v, true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into a timestamp", value)
	}
}

func (t *aggregateTime) parse(s string) error {
	// Drop a monotonic clock suffix left by time.Time.String.
	if i := strings.Index(s, " m="); i >= 0 {
		s = s[:i]
	}
	for _, layout := range aggregateTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed, true
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
