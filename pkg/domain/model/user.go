package model

import (
	"time"

	"github.com/google/uuid"
)

// UserID identifies a user. It is the subject of the caller identity token.
type UserID string

// NewUserID generates a new UUID v4 UserID
func NewUserID() UserID {
	return UserID(uuid.New().String())
}

// User is the owner of meetings, tasks and integrations
type User struct {
	ID        UserID
	Email     string `masq:"secret"`
	FullName  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
