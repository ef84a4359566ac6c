package service

import (
	"context"
	"strings"
	"time"

	"school-portal-be/internal/academic"
	"school-portal-be/internal/dto"
	"school-portal-be/internal/entity"
	"school-portal-be/internal/pkg/apperror"
	"school-portal-be/internal/pkg/logger"
	"school-portal-be/internal/repository/memory"
	"school-portal-be/internal/repository/specification"
	"school-portal-be/internal/repository/unitofwork"
	"school-portal-be/pkg/events"

	"github.com/google/uuid"
)

const messageModule = "MessageService"

type IMessageService interface {
	SendMessage(ctx context.Context, principal entity.Principal, req *dto.SendMessageRequest) (*dto.MessageResponse, error)
	ListMessages(ctx context.Context, principal entity.Principal, req *dto.ListMessagesRequest) ([]*dto.MessageResponse, error)
	MarkRead(ctx context.Context, principal entity.Principal, chatId uuid.UUID) (*dto.MarkReadResponse, error)
	DeleteMessage(ctx context.Context, principal entity.Principal, messageId uuid.UUID) error
}

type MessageServiceConfig struct {
	DefaultPageLimit int
}

type messageService struct {
	uowFactory  unitofwork.RepositoryFactory
	directory   academic.Directory
	idempotency *memory.IdempotencyRepository
	publisher   IEventPublisher
	logger      logger.ILogger
	cfg         MessageServiceConfig
}

func NewMessageService(
	uowFactory unitofwork.RepositoryFactory,
	directory academic.Directory,
	idempotency *memory.IdempotencyRepository,
	publisher IEventPublisher,
	log logger.ILogger,
	cfg MessageServiceConfig,
) IMessageService {
	if cfg.DefaultPageLimit <= 0 {
		cfg.DefaultPageLimit = 50
	}
	return &messageService{
		uowFactory:  uowFactory,
		directory:   directory,
		idempotency: idempotency,
		publisher:   publisher,
		logger:      log,
		cfg:         cfg,
	}
}

func (s *messageService) SendMessage(ctx context.Context, principal entity.Principal, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperror.InvalidArgument("content must not be empty")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := s.requireParticipant(ctx, uow, req.ChatId, principal.UserId); err != nil {
		return nil, err
	}

	// A retried send returns the first message and publishes nothing.
	reserved := false
	if req.ClientMessageId != "" {
		previous, err := s.claimClientMessageId(ctx, uow, req.ChatId, principal.UserId, req.ClientMessageId)
		if err != nil {
			return nil, err
		}
		if previous != nil {
			return s.toMessageResponses(ctx, []*entity.Message{previous})[0], nil
		}
		reserved = true
		defer func() {
			if reserved {
				s.idempotency.Delete(req.ChatId, principal.UserId, req.ClientMessageId)
			}
		}()
	}

	if req.ParentMessageId != nil {
		parent, err := uow.MessageRepository().FindOne(ctx, specification.ByID{ID: *req.ParentMessageId})
		if err != nil {
			return nil, apperror.Internal(err, "failed to load parent message")
		}
		if parent == nil || parent.ChatId != req.ChatId {
			return nil, apperror.InvalidArgument("parent message %s is not in this chat", *req.ParentMessageId)
		}
	}

	message := &entity.Message{
		ChatId:          req.ChatId,
		SenderId:        principal.UserId,
		Content:         content,
		ParentMessageId: req.ParentMessageId,
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.Internal(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	// Stamped inside the transaction, right before the insert.
	message.CreatedAt = time.Now()

	if err := uow.MessageRepository().Create(ctx, message); err != nil {
		return nil, apperror.Internal(err, "failed to save message")
	}
	// Sending implies having seen everything up to this message.
	if err := uow.ChatParticipantRepository().UpdateLastSeen(ctx, message.ChatId, principal.UserId, message.CreatedAt); err != nil {
		return nil, apperror.Internal(err, "failed to update last seen")
	}
	if err := uow.Commit(); err != nil {
		return nil, apperror.Internal(err, "failed to commit message")
	}

	if req.ClientMessageId != "" {
		s.idempotency.Save(req.ChatId, principal.UserId, req.ClientMessageId, message.Id)
		reserved = false
	}

	res := s.toMessageResponses(ctx, []*entity.Message{message})[0]
	publishEvent(ctx, s.publisher, s.logger, events.MessageSent, message.ChatId, nil, res)

	s.logger.Debug(messageModule, "Message sent", map[string]interface{}{
		"chat_id":    message.ChatId,
		"message_id": message.Id,
	})
	return res, nil
}

func (s *messageService) ListMessages(ctx context.Context, principal entity.Principal, req *dto.ListMessagesRequest) ([]*dto.MessageResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := s.requireParticipant(ctx, uow, req.ChatId, principal.UserId); err != nil {
		return nil, err
	}

	desc := req.Order == "desc"
	limit := req.Limit
	if limit <= 0 && desc {
		limit = s.cfg.DefaultPageLimit
	}

	specs := []specification.Specification{
		specification.ByChatID{ChatID: req.ChatId},
		specification.Chronological{Desc: desc},
		specification.Pagination{Limit: limit},
	}
	if req.Before != nil {
		specs = append(specs, specification.CreatedBefore{Time: *req.Before})
	}
	if req.Depth != 0 {
		specs = append(specs, specification.ThreadRoots{})
	}

	roots, err := uow.MessageRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load messages")
	}

	all := roots
	replies := make(map[uuid.UUID][]*entity.Message)
	if req.Depth != 0 {
		level := roots
		for depth := 1; len(level) > 0 && (req.Depth < 0 || depth <= req.Depth); depth++ {
			parentIds := make([]uuid.UUID, 0, len(level))
			for _, m := range level {
				parentIds = append(parentIds, m.Id)
			}
			level, err = uow.MessageRepository().FindAll(ctx,
				specification.ByChatID{ChatID: req.ChatId},
				specification.ByParentMessageIDs{ParentIDs: parentIds},
				specification.Chronological{},
			)
			if err != nil {
				return nil, apperror.Internal(err, "failed to load replies")
			}
			for _, m := range level {
				replies[*m.ParentMessageId] = append(replies[*m.ParentMessageId], m)
			}
			all = append(all, level...)
		}
	}

	if err := uow.ChatParticipantRepository().UpdateLastSeen(ctx, req.ChatId, principal.UserId, time.Now()); err != nil {
		s.logger.Warn(messageModule, "Failed to update last seen", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": req.ChatId,
		})
	}

	responses := s.toMessageResponses(ctx, all)
	byId := make(map[uuid.UUID]*dto.MessageResponse, len(responses))
	for _, r := range responses {
		byId[r.Id] = r
	}
	for parentId, children := range replies {
		parent := byId[parentId]
		for _, child := range children {
			parent.Replies = append(parent.Replies, byId[child.Id])
		}
	}

	return responses[:len(roots)], nil
}

func (s *messageService) MarkRead(ctx context.Context, principal entity.Principal, chatId uuid.UUID) (*dto.MarkReadResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := s.requireParticipant(ctx, uow, chatId, principal.UserId); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := uow.ChatParticipantRepository().UpdateLastSeen(ctx, chatId, principal.UserId, now); err != nil {
		return nil, apperror.Internal(err, "failed to update last seen")
	}
	return &dto.MarkReadResponse{
		ChatId:   chatId,
		LastSeen: now,
	}, nil
}

// DeleteMessage soft-deletes one message. Replies stay, pointing at a parent
// that no longer resolves.
func (s *messageService) DeleteMessage(ctx context.Context, principal entity.Principal, messageId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	message, err := uow.MessageRepository().FindOne(ctx, specification.ByID{ID: messageId})
	if err != nil {
		return apperror.Internal(err, "failed to load message")
	}
	if message == nil {
		return apperror.NotFound("message %s not found", messageId)
	}

	if message.SenderId != principal.UserId && !principal.IsSystemAdmin() {
		participant, err := uow.ChatParticipantRepository().FindOne(ctx,
			specification.ByChatID{ChatID: message.ChatId},
			specification.ByUserID{UserID: principal.UserId},
		)
		if err != nil {
			return apperror.Internal(err, "failed to load participant")
		}
		if !participant.IsAdmin() {
			return apperror.Forbidden("only the sender or a chat admin can delete this message")
		}
	}

	if err := uow.MessageRepository().Delete(ctx, message.Id); err != nil {
		return apperror.Internal(err, "failed to delete message")
	}
	return nil
}

// claimClientMessageId reserves key for this send. A non-nil message means the
// key already produced one that should be returned instead.
func (s *messageService) claimClientMessageId(ctx context.Context, uow unitofwork.UnitOfWork, chatId, senderId uuid.UUID, key string) (*entity.Message, error) {
	for attempt := 0; attempt < 2; attempt++ {
		messageId, ok := s.idempotency.Reserve(chatId, senderId, key)
		if ok {
			return nil, nil
		}
		if messageId == uuid.Nil {
			return nil, apperror.Conflict("message %q is still being sent", key)
		}

		previous, err := uow.MessageRepository().FindOne(ctx, specification.ByID{ID: messageId})
		if err != nil {
			return nil, apperror.Internal(err, "failed to load message")
		}
		if previous != nil {
			return previous, nil
		}
		// The earlier message was deleted, so the key may be used again.
		s.idempotency.Delete(chatId, senderId, key)
	}
	return nil, apperror.Conflict("message %q is still being sent", key)
}

func (s *messageService) requireParticipant(ctx context.Context, uow unitofwork.UnitOfWork, chatId, userId uuid.UUID) error {
	count, err := uow.ChatParticipantRepository().Count(ctx,
		specification.ByChatID{ChatID: chatId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return apperror.Internal(err, "failed to check membership")
	}
	if count == 0 {
		return apperror.Forbidden("not a participant of chat %s", chatId)
	}
	return nil
}

// toMessageResponses keeps the input order and resolves every sender with a
// single directory lookup.
func (s *messageService) toMessageResponses(ctx context.Context, messages []*entity.Message) []*dto.MessageResponse {
	senderIds := make([]uuid.UUID, 0, len(messages))
	for _, m := range messages {
		senderIds = append(senderIds, m.SenderId)
	}

	var profiles map[uuid.UUID]academic.UserProfile
	if ids := dedupeIds(senderIds); len(ids) > 0 {
		var err error
		profiles, err = s.directory.FindUsers(ctx, ids)
		if err != nil {
			s.logger.Warn(messageModule, "Failed to resolve senders", map[string]interface{}{"error": err.Error()})
		}
	}

	responses := make([]*dto.MessageResponse, 0, len(messages))
	for _, m := range messages {
		profile := profiles[m.SenderId]
		responses = append(responses, &dto.MessageResponse{
			Id:     m.Id,
			ChatId: m.ChatId,
			Sender: dto.SenderResponse{
				Id:       m.SenderId,
				FullName: profile.FullName,
				Role:     profile.Role,
			},
			Content:         m.Content,
			ParentMessageId: m.ParentMessageId,
			CreatedAt:       m.CreatedAt,
		})
	}
	return responses
}
