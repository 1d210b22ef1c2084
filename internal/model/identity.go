package model

import "time"

// Identity is the authenticated principal carried by a session.
type Identity struct {
	SessionID string    `json:"-"`
	UserID    string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
