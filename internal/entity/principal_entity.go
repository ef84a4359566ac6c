package entity

import "github.com/google/uuid"

const SystemAdminRole = "admin"

// Principal is the authenticated caller handed to services by the transport layer.
type Principal struct {
	UserId uuid.UUID
	Role   string
}

func (p Principal) IsSystemAdmin() bool {
	return p.Role == SystemAdminRole
}
