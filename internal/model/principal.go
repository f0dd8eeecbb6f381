package model

import "github.com/google/uuid"

// Principal is the authenticated caller as read from the access token.
type Principal struct {
	UserID uuid.UUID
	Name   string
	Role   UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

func (p Principal) IsEngineer() bool {
	return p.Role == UserRoleEngineer
}

func (p Principal) IsRequester() bool {
	return p.Role == UserRoleRequester
}
