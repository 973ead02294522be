package repository

import (
	"context"
	"time"

	"article-service/internal/domain"
)

// ArticleQuery describes a paginated, filtered article listing.
// PublishedOn filters on the exact published date when set.
type ArticleQuery struct {
	Page        int
	PerPage     int
	AuthorID    *int64
	PublishedOn *time.Time
}

// Offset returns the zero-indexed row offset for the query.
func (q ArticleQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// ArticleRepository exposes persistence operations for Article records.
// List returns at most PerPage records ordered by id ascending; an empty
// result past the last page is valid.
type ArticleRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, article *domain.Article) (int64, error)
	Update(ctx context.Context, article *domain.Article) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.Article, error)
	List(ctx context.Context, query ArticleQuery) ([]domain.Article, error)
}
