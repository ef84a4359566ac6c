package scope

import "gorm.io/gorm"

// Messages are ordered by commit timestamp with the time-ordered id as tie-breaker.

func OrderByCreatedDesc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}

func OrderByCreatedAsc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}
