package domain

import "time"

// Article represents an authored record served by the API.
type Article struct {
	ID            int64
	Title         string
	Content       string
	PublishedDate *time.Time
	AuthorID      int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
