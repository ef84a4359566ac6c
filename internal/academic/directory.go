// Package academic is the read-only window into the school records owned by
// the academic domain: users, class rosters and subject assignments.
package academic

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrClassNotFound   = errors.New("class not found")
	ErrSubjectNotFound = errors.New("subject not found")
)

type ClassRoster struct {
	StudentIds []uuid.UUID
	TeacherIds []uuid.UUID
}

type UserProfile struct {
	Id       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
}

// Directory results are a snapshot; chats never re-sync rosters after creation.
type Directory interface {
	ResolveClassRoster(ctx context.Context, classId uuid.UUID) (*ClassRoster, error)
	ResolveSubjectTeachers(ctx context.Context, subjectId uuid.UUID) ([]uuid.UUID, error)
	// FindUsers returns the profiles that exist; missing ids are simply absent.
	FindUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]UserProfile, error)
}
