package model

import "time"

// PaperFigure is a stored figure row with its object-store coordinates.
type PaperFigure struct {
	ID            int       `json:"id,omitempty"`
	PaperID       int       `json:"paper_id"`
	FigureIndex   int       `json:"figure_index"`
	S3Key         string    `json:"s3_key"`
	S3URL         string    `json:"s3_url"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	FileSizeBytes int       `json:"file_size_bytes"`
	Caption       *string   `json:"caption,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}
