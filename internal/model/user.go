package model

import (
	"errors"
	"time"
)

// User is an account allowed to curate the catalog.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Roles.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles never pass.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin:   2,
		RoleManager: 1,
	}
	have, ok := levels[role]
	if !ok {
		return false
	}
	need, ok := levels[minimum]
	if !ok {
		return false
	}
	return have >= need
}

// ValidatePassword rejects passwords shorter than MinPasswordLength.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
