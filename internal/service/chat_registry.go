package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"school-portal-be/internal/academic"
	"school-portal-be/internal/dto"
	"school-portal-be/internal/entity"
	"school-portal-be/internal/pkg/apperror"

	"github.com/google/uuid"
)

// ChatSpec is the type-specific creation payload of a chat. Each chat type has
// its own variant; the registry dispatches on the concrete type.
type ChatSpec interface {
	ChatType() entity.ChatType
}

type PrivateSpec struct {
	OtherUserId uuid.UUID
}

type GroupSpec struct {
	Name           string
	ParticipantIds []uuid.UUID
}

type PublicGroupSpec struct {
	Name           string
	ParticipantIds []uuid.UUID
}

type ClassSpec struct {
	Name    string
	ClassId uuid.UUID
}

// SubjectSpec: subject enrollment is not modeled, so students come in as
// explicit participants only.
type SubjectSpec struct {
	Name           string
	SubjectId      uuid.UUID
	ParticipantIds []uuid.UUID
}

func (PrivateSpec) ChatType() entity.ChatType     { return entity.ChatTypePrivate }
func (GroupSpec) ChatType() entity.ChatType       { return entity.ChatTypeGroup }
func (PublicGroupSpec) ChatType() entity.ChatType { return entity.ChatTypePublicGroup }
func (ClassSpec) ChatType() entity.ChatType       { return entity.ChatTypeClass }
func (SubjectSpec) ChatType() entity.ChatType     { return entity.ChatTypeSubject }

// ParseChatSpec validates the wire request and turns it into a typed variant.
func ParseChatSpec(req *dto.CreateChatRequest) (ChatSpec, error) {
	chatType := entity.ChatType(req.Type)
	if !chatType.IsValid() {
		return nil, apperror.InvalidArgument("unknown chat type %q", req.Type)
	}

	if chatType == entity.ChatTypePrivate {
		if len(req.ParticipantIds) != 1 {
			return nil, apperror.InvalidArgument("a private chat needs exactly one other participant")
		}
		return PrivateSpec{OtherUserId: req.ParticipantIds[0]}, nil
	}

	name := ""
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if name == "" {
		return nil, apperror.InvalidArgument("name is required for %s chats", chatType)
	}

	switch chatType {
	case entity.ChatTypeGroup:
		if len(req.ParticipantIds) == 0 {
			return nil, apperror.InvalidArgument("a group chat needs at least one participant")
		}
		return GroupSpec{Name: name, ParticipantIds: req.ParticipantIds}, nil
	case entity.ChatTypePublicGroup:
		return PublicGroupSpec{Name: name, ParticipantIds: req.ParticipantIds}, nil
	case entity.ChatTypeClass:
		if req.ClassId == nil || *req.ClassId == uuid.Nil {
			return nil, apperror.InvalidArgument("class_id is required for class chats")
		}
		return ClassSpec{Name: name, ClassId: *req.ClassId}, nil
	default:
		if req.SubjectId == nil || *req.SubjectId == uuid.Nil {
			return nil, apperror.InvalidArgument("subject_id is required for subject chats")
		}
		return SubjectSpec{Name: name, SubjectId: *req.SubjectId, ParticipantIds: req.ParticipantIds}, nil
	}
}

// PairKey is the order-independent key of a private chat between a and b.
func PairKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

func SingletonKey(chatType entity.ChatType, ref uuid.UUID) string {
	return string(chatType) + ":" + ref.String()
}

type ChatRegistry struct {
	directory academic.Directory
}

func NewChatRegistry(directory academic.Directory) *ChatRegistry {
	return &ChatRegistry{directory: directory}
}

// NewChat builds the chat record for spec, including its uniqueness key.
func (r *ChatRegistry) NewChat(creatorId uuid.UUID, spec ChatSpec) *entity.Chat {
	chat := &entity.Chat{
		Type:      spec.ChatType(),
		CreatedBy: creatorId,
		CreatedAt: time.Now(),
	}

	switch s := spec.(type) {
	case PrivateSpec:
		key := PairKey(creatorId, s.OtherUserId)
		chat.PairKey = &key
	case GroupSpec:
		chat.Name = &s.Name
	case PublicGroupSpec:
		chat.Name = &s.Name
	case ClassSpec:
		key := SingletonKey(entity.ChatTypeClass, s.ClassId)
		chat.Name = &s.Name
		chat.ClassRef = &s.ClassId
		chat.SingletonKey = &key
	case SubjectSpec:
		key := SingletonKey(entity.ChatTypeSubject, s.SubjectId)
		chat.Name = &s.Name
		chat.SubjectRef = &s.SubjectId
		chat.SingletonKey = &key
	}
	return chat
}

// DeriveInitialParticipants returns the creator followed by everyone else the
// chat starts with, deduplicated. Rosters are a snapshot taken now.
func (r *ChatRegistry) DeriveInitialParticipants(ctx context.Context, creatorId uuid.UUID, spec ChatSpec) ([]uuid.UUID, error) {
	var others []uuid.UUID

	switch s := spec.(type) {
	case PrivateSpec:
		if s.OtherUserId == creatorId {
			return nil, apperror.InvalidArgument("cannot start a private chat with yourself")
		}
		if err := r.EnsureUsersExist(ctx, []uuid.UUID{s.OtherUserId}); err != nil {
			return nil, err
		}
		return []uuid.UUID{creatorId, s.OtherUserId}, nil

	case GroupSpec:
		if err := r.EnsureUsersExist(ctx, s.ParticipantIds); err != nil {
			return nil, err
		}
		others = s.ParticipantIds
	case PublicGroupSpec:
		if err := r.EnsureUsersExist(ctx, s.ParticipantIds); err != nil {
			return nil, err
		}
		others = s.ParticipantIds

	case ClassSpec:
		roster, err := r.directory.ResolveClassRoster(ctx, s.ClassId)
		if errors.Is(err, academic.ErrClassNotFound) {
			return nil, apperror.NotFound("class %s not found", s.ClassId)
		}
		if err != nil {
			return nil, apperror.Internal(err, "failed to resolve class roster")
		}
		others = append(others, roster.StudentIds...)
		others = append(others, roster.TeacherIds...)

	case SubjectSpec:
		teachers, err := r.directory.ResolveSubjectTeachers(ctx, s.SubjectId)
		if errors.Is(err, academic.ErrSubjectNotFound) {
			return nil, apperror.NotFound("subject %s not found", s.SubjectId)
		}
		if err != nil {
			return nil, apperror.Internal(err, "failed to resolve subject teachers")
		}
		if err := r.EnsureUsersExist(ctx, s.ParticipantIds); err != nil {
			return nil, err
		}
		others = append(others, teachers...)
		others = append(others, s.ParticipantIds...)

	default:
		return nil, apperror.InvalidArgument("unsupported chat type")
	}

	return dedupeIds(append([]uuid.UUID{creatorId}, others...)), nil
}

// EnsureUsersExist fails with NotFound naming the first unknown id.
func (r *ChatRegistry) EnsureUsersExist(ctx context.Context, ids []uuid.UUID) error {
	ids = dedupeIds(ids)
	if len(ids) == 0 {
		return nil
	}
	found, err := r.directory.FindUsers(ctx, ids)
	if err != nil {
		return apperror.Internal(err, "failed to look up users")
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return apperror.NotFound("user %s not found", id)
		}
	}
	return nil
}

func dedupeIds(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
