package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"school-portal-be/internal/academic"
	"school-portal-be/internal/dto"
	"school-portal-be/internal/entity"
	"school-portal-be/internal/pkg/apperror"
	"school-portal-be/internal/pkg/logger"
	"school-portal-be/internal/repository/contract"
	"school-portal-be/internal/repository/specification"
	"school-portal-be/internal/repository/unitofwork"
	"school-portal-be/pkg/events"

	"github.com/google/uuid"
)

const chatModule = "ChatService"

type IChatService interface {
	GetOrCreatePrivateChat(ctx context.Context, principal entity.Principal, otherUserId uuid.UUID) (*dto.ChatResponse, error)
	CreateChat(ctx context.Context, principal entity.Principal, req *dto.CreateChatRequest) (*dto.ChatResponse, error)
	AddParticipants(ctx context.Context, principal entity.Principal, req *dto.AddParticipantsRequest) (*dto.AddParticipantsResponse, error)
	JoinPublicChat(ctx context.Context, principal entity.Principal, chatId uuid.UUID) (*dto.ChatResponse, error)
	LeaveChat(ctx context.Context, principal entity.Principal, chatId uuid.UUID) error
	DeleteChat(ctx context.Context, principal entity.Principal, chatId uuid.UUID) error
	GetChat(ctx context.Context, principal entity.Principal, chatId uuid.UUID) (*dto.ChatResponse, error)
	ListMyChats(ctx context.Context, principal entity.Principal) ([]*dto.ChatSummaryResponse, error)
	ListJoinableChats(ctx context.Context, principal entity.Principal) ([]*dto.JoinableChatResponse, error)
	// ListChatIdsForUser backs the subscription gateway's authorized chat set.
	ListChatIdsForUser(ctx context.Context, userId uuid.UUID) ([]uuid.UUID, error)
}

type chatService struct {
	uowFactory unitofwork.RepositoryFactory
	registry   *ChatRegistry
	directory  academic.Directory
	publisher  IEventPublisher
	logger     logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	registry *ChatRegistry,
	directory academic.Directory,
	publisher IEventPublisher,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory: uowFactory,
		registry:   registry,
		directory:  directory,
		publisher:  publisher,
		logger:     log,
	}
}

func (s *chatService) GetOrCreatePrivateChat(ctx context.Context, principal entity.Principal, otherUserId uuid.UUID) (*dto.ChatResponse, error) {
	userA, userB := principal.UserId, otherUserId
	if userA == userB {
		return nil, apperror.InvalidArgument("cannot start a private chat with yourself")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	pairKey := PairKey(userA, userB)

	existing, err := uow.ChatRepository().FindOne(ctx, specification.ByPairKey{PairKey: pairKey})
	if err != nil {
		return nil, apperror.Internal(err, "failed to look up private chat")
	}
	if existing != nil {
		return s.loadChatResponse(ctx, uow, existing)
	}

	spec := PrivateSpec{OtherUserId: userB}
	memberIds, err := s.registry.DeriveInitialParticipants(ctx, userA, spec)
	if err != nil {
		return nil, err
	}

	chat := s.registry.NewChat(userA, spec)
	participants := initialParticipants(memberIds, chat.CreatedAt)

	err = s.persistChat(ctx, chat, participants)
	if errors.Is(err, contract.ErrDuplicateKey) {
		// Lost the race to a concurrent caller: return the winner's chat.
		winner, err := uow.ChatRepository().FindOne(ctx, specification.ByPairKey{PairKey: pairKey})
		if err != nil {
			return nil, apperror.Internal(err, "failed to re-read private chat")
		}
		if winner == nil {
			return nil, apperror.Internal(contract.ErrDuplicateKey, "private chat vanished after conflict")
		}
		s.logger.Debug(chatModule, "Private chat creation lost race, returning existing chat", map[string]interface{}{
			"chat_id": winner.Id,
		})
		return s.loadChatResponse(ctx, uow, winner)
	}
	if err != nil {
		return nil, apperror.Internal(err, "failed to create private chat")
	}

	res := s.toChatResponse(ctx, chat, participants)
	publishEvent(ctx, s.publisher, s.logger, events.ChatCreated, chat.Id, memberIds, res)

	s.logger.Info(chatModule, "Private chat created", map[string]interface{}{
		"chat_id": chat.Id,
	})
	return res, nil
}

func (s *chatService) CreateChat(ctx context.Context, principal entity.Principal, req *dto.CreateChatRequest) (*dto.ChatResponse, error) {
	spec, err := ParseChatSpec(req)
	if err != nil {
		return nil, err
	}
	if private, ok := spec.(PrivateSpec); ok {
		return s.GetOrCreatePrivateChat(ctx, principal, private.OtherUserId)
	}

	memberIds, err := s.registry.DeriveInitialParticipants(ctx, principal.UserId, spec)
	if err != nil {
		return nil, err
	}

	chat := s.registry.NewChat(principal.UserId, spec)
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if chat.SingletonKey != nil {
		existing, err := uow.ChatRepository().FindOne(ctx, specification.BySingletonKey{SingletonKey: *chat.SingletonKey})
		if err != nil {
			return nil, apperror.Internal(err, "failed to look up chat")
		}
		if existing != nil {
			return nil, apperror.Conflict("a %s chat already exists for this reference", chat.Type)
		}
	}

	participants := initialParticipants(memberIds, chat.CreatedAt)
	err = s.persistChat(ctx, chat, participants)
	if errors.Is(err, contract.ErrDuplicateKey) {
		return nil, apperror.Conflict("a %s chat already exists for this reference", chat.Type)
	}
	if err != nil {
		return nil, apperror.Internal(err, "failed to create chat")
	}

	res := s.toChatResponse(ctx, chat, participants)
	publishEvent(ctx, s.publisher, s.logger, events.ChatCreated, chat.Id, memberIds, res)

	s.logger.Info(chatModule, "Chat created", map[string]interface{}{
		"chat_id":      chat.Id,
		"type":         chat.Type,
		"participants": len(participants),
	})
	return res, nil
}

func (s *chatService) AddParticipants(ctx context.Context, principal entity.Principal, req *dto.AddParticipantsRequest) (*dto.AddParticipantsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	chat, err := s.findChat(ctx, uow, req.ChatId)
	if err != nil {
		return nil, err
	}
	if chat.Type.IsStructural() {
		return nil, apperror.InvalidArgument("participants of %s chats are fixed at creation", chat.Type)
	}

	requester, err := s.findParticipant(ctx, uow, chat.Id, principal.UserId)
	if err != nil {
		return nil, err
	}
	if !requester.IsAdmin() {
		return nil, apperror.Forbidden("only chat admins can add participants")
	}

	userIds := dedupeIds(req.UserIds)
	if len(userIds) == 0 {
		return nil, apperror.InvalidArgument("user_ids must not be empty")
	}
	if err := s.registry.EnsureUsersExist(ctx, userIds); err != nil {
		return nil, err
	}

	current, err := uow.ChatParticipantRepository().FindAll(ctx,
		specification.ByChatID{ChatID: chat.Id},
		specification.ByUserIDs{UserIDs: userIds},
	)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load participants")
	}
	present := make(map[uuid.UUID]struct{}, len(current))
	for _, p := range current {
		present[p.UserId] = struct{}{}
	}

	added := make([]uuid.UUID, 0, len(userIds))
	for _, userId := range userIds {
		if _, ok := present[userId]; ok {
			continue
		}
		ok, err := s.insertMember(ctx, uow, chat.Id, userId)
		if err != nil {
			return nil, apperror.Internal(err, "failed to add participant")
		}
		if ok {
			added = append(added, userId)
		}
	}

	if len(added) > 0 {
		chatRes, err := s.loadChatResponse(ctx, uow, chat)
		if err != nil {
			return nil, err
		}
		for _, userId := range added {
			publishEvent(ctx, s.publisher, s.logger, events.ParticipantAdded, chat.Id, []uuid.UUID{userId}, dto.ParticipantEventData{
				ChatId: chat.Id,
				UserId: userId,
				Role:   string(entity.ParticipantRoleMember),
				By:     principal.UserId,
			})
		}
		// Newcomers need the chat itself to render it.
		publishEvent(ctx, s.publisher, s.logger, events.ChatCreated, chat.Id, added, chatRes)
	}

	return &dto.AddParticipantsResponse{
		ChatId: chat.Id,
		Added:  added,
	}, nil
}

func (s *chatService) JoinPublicChat(ctx context.Context, principal entity.Principal, chatId uuid.UUID) (*dto.ChatResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	chat, err := s.findChat(ctx, uow, chatId)
	if err != nil {
		return nil, err
	}
	if chat.Type != entity.ChatTypePublicGroup {
		return nil, apperror.Forbidden("only public group chats can be joined")
	}

	existing, err := uow.ChatParticipantRepository().FindOne(ctx,
		specification.ByChatID{ChatID: chat.Id},
		specification.ByUserID{UserID: principal.UserId},
	)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load participant")
	}
	if existing != nil {
		return s.loadChatResponse(ctx, uow, chat)
	}

	joined, err := s.insertMember(ctx, uow, chat.Id, principal.UserId)
	if err != nil {
		return nil, apperror.Internal(err, "failed to join chat")
	}

	res, err := s.loadChatResponse(ctx, uow, chat)
	if err != nil {
		return nil, err
	}
	if joined {
		publishEvent(ctx, s.publisher, s.logger, events.ParticipantAdded, chat.Id, []uuid.UUID{principal.UserId}, dto.ParticipantEventData{
			ChatId: chat.Id,
			UserId: principal.UserId,
			Role:   string(entity.ParticipantRoleMember),
			By:     principal.UserId,
		})
	}
	return res, nil
}

func (s *chatService) LeaveChat(ctx context.Context, principal entity.Principal, chatId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	chat, err := s.findChat(ctx, uow, chatId)
	if err != nil {
		return err
	}
	if chat.Type == entity.ChatTypePrivate {
		return apperror.InvalidArgument("private chats cannot be left")
	}

	participant, err := uow.ChatParticipantRepository().FindOne(ctx,
		specification.ByChatID{ChatID: chat.Id},
		specification.ByUserID{UserID: principal.UserId},
	)
	if err != nil {
		return apperror.Internal(err, "failed to load participant")
	}
	if participant == nil {
		return apperror.NotFound("not a participant of chat %s", chat.Id)
	}

	if err := uow.ChatParticipantRepository().Delete(ctx, chat.Id, principal.UserId); err != nil {
		return apperror.Internal(err, "failed to leave chat")
	}

	publishEvent(ctx, s.publisher, s.logger, events.ParticipantRemoved, chat.Id, []uuid.UUID{principal.UserId}, dto.ParticipantEventData{
		ChatId: chat.Id,
		UserId: principal.UserId,
		By:     principal.UserId,
	})
	return nil
}

func (s *chatService) DeleteChat(ctx context.Context, principal entity.Principal, chatId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	chat, err := s.findChat(ctx, uow, chatId)
	if err != nil {
		return err
	}

	if !principal.IsSystemAdmin() {
		requester, err := s.findParticipant(ctx, uow, chat.Id, principal.UserId)
		if err != nil {
			return err
		}
		if !requester.IsAdmin() {
			return apperror.Forbidden("only chat admins can delete the chat")
		}
	}

	participants, err := uow.ChatParticipantRepository().FindAll(ctx, specification.ByChatID{ChatID: chat.Id})
	if err != nil {
		return apperror.Internal(err, "failed to load participants")
	}

	if err := uow.Begin(ctx); err != nil {
		return apperror.Internal(err, "failed to begin transaction")
	}
	defer uow.Rollback()

	if err := uow.MessageRepository().DeleteByChatId(ctx, chat.Id); err != nil {
		return apperror.Internal(err, "failed to delete messages")
	}
	if err := uow.ChatParticipantRepository().DeleteByChatId(ctx, chat.Id); err != nil {
		return apperror.Internal(err, "failed to delete participants")
	}
	if err := uow.ChatRepository().Delete(ctx, chat.Id); err != nil {
		return apperror.Internal(err, "failed to delete chat")
	}
	if err := uow.Commit(); err != nil {
		return apperror.Internal(err, "failed to commit chat deletion")
	}

	targets := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		targets = append(targets, p.UserId)
	}
	publishEvent(ctx, s.publisher, s.logger, events.ChatDeleted, chat.Id, targets, dto.ChatDeletedEventData{
		ChatId:    chat.Id,
		DeletedBy: principal.UserId,
	})

	s.logger.Info(chatModule, "Chat deleted", map[string]interface{}{
		"chat_id":    chat.Id,
		"deleted_by": principal.UserId,
	})
	return nil
}

func (s *chatService) GetChat(ctx context.Context, principal entity.Principal, chatId uuid.UUID) (*dto.ChatResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	chat, err := s.findChat(ctx, uow, chatId)
	if err != nil {
		return nil, err
	}
	if !principal.IsSystemAdmin() {
		if _, err := s.findParticipant(ctx, uow, chat.Id, principal.UserId); err != nil {
			return nil, err
		}
	}
	return s.loadChatResponse(ctx, uow, chat)
}

func (s *chatService) ListMyChats(ctx context.Context, principal entity.Principal) ([]*dto.ChatSummaryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	chats, err := uow.ChatRepository().FindAll(ctx, specification.ParticipatedBy{UserID: principal.UserId})
	if err != nil {
		return nil, apperror.Internal(err, "failed to load chats")
	}
	if len(chats) == 0 {
		return []*dto.ChatSummaryResponse{}, nil
	}

	chatIds := make([]uuid.UUID, 0, len(chats))
	for _, chat := range chats {
		chatIds = append(chatIds, chat.Id)
	}
	activity, err := uow.MessageRepository().ActivityFor(ctx, principal.UserId, chatIds)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load chat activity")
	}

	result := make([]*dto.ChatSummaryResponse, 0, len(chats))
	for _, chat := range chats {
		summary := &dto.ChatSummaryResponse{
			ChatResponse: *s.toChatResponse(ctx, chat, nil),
		}
		if a, ok := activity[chat.Id]; ok {
			summary.UnreadCount = a.UnreadCount
			summary.LastMessageAt = a.LastMessageAt
		}
		result = append(result, summary)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return lastActivity(result[i]).After(lastActivity(result[j]))
	})
	return result, nil
}

func lastActivity(c *dto.ChatSummaryResponse) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (s *chatService) ListJoinableChats(ctx context.Context, principal entity.Principal) ([]*dto.JoinableChatResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	chats, err := uow.ChatRepository().FindAll(ctx,
		specification.ByChatType{Type: entity.ChatTypePublicGroup},
		specification.NotParticipatedBy{UserID: principal.UserId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load joinable chats")
	}

	result := make([]*dto.JoinableChatResponse, 0, len(chats))
	for _, chat := range chats {
		count, err := uow.ChatParticipantRepository().Count(ctx, specification.ByChatID{ChatID: chat.Id})
		if err != nil {
			return nil, apperror.Internal(err, "failed to count participants")
		}
		result = append(result, &dto.JoinableChatResponse{
			Id:               chat.Id,
			Name:             chat.Name,
			ParticipantCount: count,
			CreatedAt:        chat.CreatedAt,
		})
	}
	return result, nil
}

func (s *chatService) ListChatIdsForUser(ctx context.Context, userId uuid.UUID) ([]uuid.UUID, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	memberships, err := uow.ChatParticipantRepository().FindAll(ctx, specification.ByUserID{UserID: userId})
	if err != nil {
		return nil, apperror.Internal(err, "failed to load memberships")
	}
	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.ChatId)
	}
	return ids, nil
}

// persistChat writes the chat and its initial participants atomically.
func (s *chatService) persistChat(ctx context.Context, chat *entity.Chat, participants []*entity.ChatParticipant) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatRepository().Create(ctx, chat); err != nil {
		return err
	}
	for _, p := range participants {
		p.ChatId = chat.Id
	}
	if err := uow.ChatParticipantRepository().CreateBulk(ctx, participants); err != nil {
		return err
	}
	return uow.Commit()
}

// insertMember restores a previous membership or creates a new one. It reports
// false when a concurrent insert got there first.
func (s *chatService) insertMember(ctx context.Context, uow unitofwork.UnitOfWork, chatId, userId uuid.UUID) (bool, error) {
	restored, err := uow.ChatParticipantRepository().Restore(ctx, chatId, userId, entity.ParticipantRoleMember)
	if err != nil {
		return false, err
	}
	if restored {
		return true, nil
	}

	err = uow.ChatParticipantRepository().Create(ctx, &entity.ChatParticipant{
		ChatId:    chatId,
		UserId:    userId,
		Role:      entity.ParticipantRoleMember,
		CreatedAt: time.Now(),
	})
	if errors.Is(err, contract.ErrDuplicateKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *chatService) findChat(ctx context.Context, uow unitofwork.UnitOfWork, chatId uuid.UUID) (*entity.Chat, error) {
	chat, err := uow.ChatRepository().FindOne(ctx, specification.ByID{ID: chatId})
	if err != nil {
		return nil, apperror.Internal(err, "failed to load chat")
	}
	if chat == nil {
		return nil, apperror.NotFound("chat %s not found", chatId)
	}
	return chat, nil
}

// findParticipant fails with Forbidden when the user is not a current member.
func (s *chatService) findParticipant(ctx context.Context, uow unitofwork.UnitOfWork, chatId, userId uuid.UUID) (*entity.ChatParticipant, error) {
	participant, err := uow.ChatParticipantRepository().FindOne(ctx,
		specification.ByChatID{ChatID: chatId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load participant")
	}
	if participant == nil {
		return nil, apperror.Forbidden("not a participant of chat %s", chatId)
	}
	return participant, nil
}

func (s *chatService) loadChatResponse(ctx context.Context, uow unitofwork.UnitOfWork, chat *entity.Chat) (*dto.ChatResponse, error) {
	participants, err := uow.ChatParticipantRepository().FindAll(ctx,
		specification.ByChatID{ChatID: chat.Id},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load participants")
	}
	return s.toChatResponse(ctx, chat, participants), nil
}

// toChatResponse decorates participants with profile names when the directory
// can provide them; a lookup failure only loses the names.
func (s *chatService) toChatResponse(ctx context.Context, chat *entity.Chat, participants []*entity.ChatParticipant) *dto.ChatResponse {
	res := &dto.ChatResponse{
		Id:         chat.Id,
		Type:       string(chat.Type),
		Name:       chat.Name,
		ClassRef:   chat.ClassRef,
		SubjectRef: chat.SubjectRef,
		CreatedBy:  chat.CreatedBy,
		CreatedAt:  chat.CreatedAt,
		UpdatedAt:  chat.UpdatedAt,
	}
	if len(participants) == 0 {
		return res
	}

	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserId)
	}
	profiles, err := s.directory.FindUsers(ctx, ids)
	if err != nil {
		s.logger.Warn(chatModule, "Failed to load participant profiles", map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chat.Id,
		})
	}

	res.Participants = make([]*dto.ParticipantResponse, 0, len(participants))
	for _, p := range participants {
		res.Participants = append(res.Participants, &dto.ParticipantResponse{
			UserId:   p.UserId,
			FullName: profiles[p.UserId].FullName,
			Role:     string(p.Role),
			LastSeen: p.LastSeen,
			JoinedAt: p.CreatedAt,
		})
	}
	return res
}

// initialParticipants makes the first id the admin and everyone else a member.
func initialParticipants(memberIds []uuid.UUID, at time.Time) []*entity.ChatParticipant {
	participants := make([]*entity.ChatParticipant, 0, len(memberIds))
	for i, userId := range memberIds {
		role := entity.ParticipantRoleMember
		if i == 0 {
			role = entity.ParticipantRoleAdmin
		}
		participants = append(participants, &entity.ChatParticipant{
			UserId:    userId,
			Role:      role,
			CreatedAt: at,
		})
	}
	return participants
}
