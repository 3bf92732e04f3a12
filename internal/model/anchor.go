package model

import "time"

// Anchor is a category definition with its reference embedding.
// Papers are scored by cosine similarity against the active anchors.
type Anchor struct {
	ID           int       `json:"id"`
	CategoryID   int       `json:"category_id"`
	CategoryName string    `json:"category_name"`
	DefinitionEN string    `json:"definition_en"`
	DefinitionJA string    `json:"definition_ja,omitempty"`
	Embedding    []float32 `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}
