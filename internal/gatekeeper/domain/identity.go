package domain

import "time"

// Identity is a provisioned user record. Account management lives
// outside the gateway; the only field the gateway ever writes back is
// the last-login timestamp.
type Identity struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // Argon2id, PHC format
	Superuser    bool
	Disabled     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
