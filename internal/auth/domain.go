package auth

import "errors"

// Roles returned to the terminal after badge login.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ErrUnknownBadge is returned when a badge matches neither table.
var ErrUnknownBadge = errors.New("auth: unknown badge")

// Account is the resolved identity behind a scanned badge.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Operator is one weigh-floor operator, also served to the handheld sync.
type Operator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
