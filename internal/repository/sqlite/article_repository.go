package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"article-service/internal/domain"
	"article-service/internal/repository"
)

const createArticlesTable = `
CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	published_date TEXT NULL,
	author_id INTEGER NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// dateLayout is how published dates are stored; a plain day string keeps
// exact-match filtering independent of time zones.
const dateLayout = "2006-01-02"

type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepository{db: db}
}

func (r *ArticleRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createArticlesTable); err != nil {
		return fmt.Errorf("create articles table: %w", err)
	}
	return nil
}

func (r *ArticleRepository) Create(ctx context.Context, article *domain.Article) (int64, error) {
	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO articles (title, content, published_date, author_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		article.Title,
		article.Content,
		dateArg(article.PublishedDate),
		article.AuthorID,
		article.CreatedAt,
		article.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("article last insert id: %w", err)
	}
	article.ID = id
	return id, nil
}

func (r *ArticleRepository) Update(ctx context.Context, article *domain.Article) error {
	article.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
UPDATE articles
SET title=?, content=?, published_date=?, updated_at=?
WHERE id=?`,
		article.Title,
		article.Content,
		dateArg(article.PublishedDate),
		article.UpdatedAt,
		article.ID,
	)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update article rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("article %d: %w", article.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *ArticleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete article rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("article %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *ArticleRepository) Get(ctx context.Context, id int64) (*domain.Article, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, content, published_date, author_id, created_at, updated_at
FROM articles
WHERE id = ?`,
		id,
	)
	return scanArticle(row)
}

func (r *ArticleRepository) List(ctx context.Context, q repository.ArticleQuery) ([]domain.Article, error) {
	query := `
SELECT id, title, content, published_date, author_id, created_at, updated_at
FROM articles`

	var (
		conds []string
		args  []any
	)
	if q.AuthorID != nil {
		conds = append(conds, "author_id = ?")
		args = append(args, *q.AuthorID)
	}
	if q.PublishedOn != nil {
		conds = append(conds, "published_date = ?")
		args = append(args, q.PublishedOn.Format(dateLayout))
	}
	if len(conds) > 0 {
		query += "\nWHERE " + strings.Join(conds, " AND ")
	}
	query += "\nORDER BY id ASC\nLIMIT ? OFFSET ?"
	args = append(args, q.PerPage, q.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	articles := make([]domain.Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

func dateArg(date *time.Time) any {
	if date == nil {
		return nil
	}
	return date.Format(dateLayout)
}

func scanArticle(row interface {
	Scan(dest ...any) error
}) (*domain.Article, error) {
	var (
		article   domain.Article
		published sql.NullString
	)
	if err := row.Scan(
		&article.ID,
		&article.Title,
		&article.Content,
		&published,
		&article.AuthorID,
		&article.CreatedAt,
		&article.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("article: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	if published.Valid {
		day, err := time.Parse(dateLayout, published.String)
		if err != nil {
			return nil, fmt.Errorf("parse published date: %w", err)
		}
		article.PublishedDate = &day
	}
	return &article, nil
}
