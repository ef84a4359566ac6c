package scope

import "gorm.io/gorm"

// IncludeDeleted lifts the soft-delete filter, e.g. to find a participant row
// left behind when a user quit a chat.
func IncludeDeleted(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}
