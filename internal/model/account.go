package model

import "time"

// Account is a registered user. Only its ID ever reaches the lobby core.
type Account struct {
	ID           UserID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
}
