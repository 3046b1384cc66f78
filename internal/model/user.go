package model

import (
	"strings"
	"time"
)

// Roles understood by the API.
const (
	RoleStudent = "STUDENT"
	RoleAdmin   = "ADMIN"
)

// User is an account holder.  Email and RollNumber are both unique; the roll
// number is what seats, ledger rows and scans refer to.
type User struct {
	ID           uint64
	Name         string
	Email        string
	RollNumber   string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeRoll trims and upper-cases a roll number so that scans typed or
// decoded in any case match the stored value.
func NormalizeRoll(roll string) string {
	return strings.ToUpper(strings.TrimSpace(roll))
}

// RefreshToken models an entry in refresh_tokens.  Only the SHA-256 hash of
// the token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
