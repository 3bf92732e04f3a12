package model

import "time"

// User is a reader account for the curated corpus API.
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	DisplayName  *string   `json:"display_name,omitempty"`
	APIKeyHash   *string   `json:"-"`
	Language     string    `json:"language"`
	DefaultLevel int       `json:"default_level"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Bookmark links a user to a saved paper.
type Bookmark struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	PaperID   int       `json:"paper_id"`
	CreatedAt time.Time `json:"created_at"`
}
