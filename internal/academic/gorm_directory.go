package academic

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDirectory reads the academic tables directly. It never writes.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Table(table).
		Where("id = ? AND deleted_at IS NULL", id).
		Count(&count).Error
	return count > 0, err
}

func (d *GormDirectory) ResolveClassRoster(ctx context.Context, classId uuid.UUID) (*ClassRoster, error) {
	ok, err := d.exists(ctx, "classes", classId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrClassNotFound
	}

	roster := &ClassRoster{}
	if err := d.db.WithContext(ctx).
		Table("students").
		Where("class_id = ? AND deleted_at IS NULL", classId).
		Pluck("user_id", &roster.StudentIds).Error; err != nil {
		return nil, err
	}
	if err := d.db.WithContext(ctx).
		Table("teacher_classes").
		Joins("JOIN teachers ON teachers.id = teacher_classes.teacher_id").
		Where("teacher_classes.class_id = ? AND teachers.deleted_at IS NULL", classId).
		Pluck("teachers.user_id", &roster.TeacherIds).Error; err != nil {
		return nil, err
	}
	return roster, nil
}

func (d *GormDirectory) ResolveSubjectTeachers(ctx context.Context, subjectId uuid.UUID) ([]uuid.UUID, error) {
	ok, err := d.exists(ctx, "subjects", subjectId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubjectNotFound
	}

	var teacherIds []uuid.UUID
	if err := d.db.WithContext(ctx).
		Table("teacher_subjects").
		Joins("JOIN teachers ON teachers.id = teacher_subjects.teacher_id").
		Where("teacher_subjects.subject_id = ? AND teachers.deleted_at IS NULL", subjectId).
		Pluck("teachers.user_id", &teacherIds).Error; err != nil {
		return nil, err
	}
	return teacherIds, nil
}

func (d *GormDirectory) FindUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]UserProfile, error) {
	result := make(map[uuid.UUID]UserProfile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []UserProfile
	if err := d.db.WithContext(ctx).
		Table("users").
		Select("id, full_name, role").
		Where("id IN ? AND deleted_at IS NULL", ids).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.Id] = row
	}
	return result, nil
}
