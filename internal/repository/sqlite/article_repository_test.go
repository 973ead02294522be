package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"article-service/internal/domain"
	"article-service/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, NewUserRepository(db).Init(context.Background()))
	require.NoError(t, NewArticleRepository(db).Init(context.Background()))
	return db
}

func createAuthor(t *testing.T, db *sql.DB, username string) *domain.User {
	t.Helper()

	user := &domain.User{
		Username:     username,
		PasswordHash: "digest",
		Active:       true,
		Role:         domain.RoleUser,
	}
	_, err := NewUserRepository(db).Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestArticlePagination(t *testing.T) {
	db := openTestDB(t)
	articles := NewArticleRepository(db)
	author := createAuthor(t, db, "alice")

	for i := 1; i <= 15; i++ {
		_, err := articles.Create(context.Background(), &domain.Article{
			Title:    fmt.Sprintf("article %d", i),
			AuthorID: author.ID,
		})
		require.NoError(t, err)
	}

	page1, err := articles.List(context.Background(), repository.ArticleQuery{Page: 1, PerPage: 10})
	require.NoError(t, err)
	page2, err := articles.List(context.Background(), repository.ArticleQuery{Page: 2, PerPage: 10})
	require.NoError(t, err)

	require.Len(t, page1, 10)
	require.Len(t, page2, 5)

	seen := map[int64]bool{}
	var prev int64
	for _, a := range append(page1, page2...) {
		require.False(t, seen[a.ID], "id %d appears on two pages", a.ID)
		require.Greater(t, a.ID, prev, "ordering must be ascending by id")
		seen[a.ID] = true
		prev = a.ID
	}

	// An empty page past the end is valid, not an error.
	page3, err := articles.List(context.Background(), repository.ArticleQuery{Page: 3, PerPage: 10})
	require.NoError(t, err)
	require.Empty(t, page3)
}

func TestArticleAuthorFilter(t *testing.T) {
	db := openTestDB(t)
	articles := NewArticleRepository(db)
	alice := createAuthor(t, db, "alice")
	bob := createAuthor(t, db, "bob")

	for i := 0; i < 3; i++ {
		_, err := articles.Create(context.Background(), &domain.Article{Title: "by alice", AuthorID: alice.ID})
		require.NoError(t, err)
	}
	_, err := articles.Create(context.Background(), &domain.Article{Title: "by bob", AuthorID: bob.ID})
	require.NoError(t, err)

	got, err := articles.List(context.Background(), repository.ArticleQuery{Page: 1, PerPage: 10, AuthorID: &alice.ID})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, a := range got {
		require.Equal(t, alice.ID, a.AuthorID)
	}
}

func TestArticleDateFilterExactMatch(t *testing.T) {
	db := openTestDB(t)
	articles := NewArticleRepository(db)
	author := createAuthor(t, db, "alice")

	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	dayAfter := day.AddDate(0, 0, 1)

	_, err := articles.Create(context.Background(), &domain.Article{Title: "on the day", AuthorID: author.ID, PublishedDate: &day})
	require.NoError(t, err)
	_, err = articles.Create(context.Background(), &domain.Article{Title: "day after", AuthorID: author.ID, PublishedDate: &dayAfter})
	require.NoError(t, err)
	_, err = articles.Create(context.Background(), &domain.Article{Title: "unpublished", AuthorID: author.ID})
	require.NoError(t, err)

	// Exact match on the boundary date: the day itself matches, the day
	// after does not.
	got, err := articles.List(context.Background(), repository.ArticleQuery{Page: 1, PerPage: 10, PublishedOn: &day})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "on the day", got[0].Title)

	got, err = articles.List(context.Background(), repository.ArticleQuery{Page: 1, PerPage: 10, PublishedOn: &dayAfter})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "day after", got[0].Title)
}

func TestArticleCRUD(t *testing.T) {
	db := openTestDB(t)
	articles := NewArticleRepository(db)
	author := createAuthor(t, db, "alice")

	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	created := &domain.Article{Title: "hello", Content: "body", AuthorID: author.ID, PublishedDate: &day}
	id, err := articles.Create(context.Background(), created)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := articles.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "hello", got.Title)
	require.NotNil(t, got.PublishedDate)
	require.Equal(t, "2024-05-10", got.PublishedDate.Format("2006-01-02"))

	got.Title = "updated"
	require.NoError(t, articles.Update(context.Background(), got))

	got, err = articles.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "updated", got.Title)

	require.NoError(t, articles.Delete(context.Background(), id))

	_, err = articles.Get(context.Background(), id)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, articles.Update(context.Background(), got), repository.ErrNotFound)
	require.ErrorIs(t, articles.Delete(context.Background(), id), repository.ErrNotFound)
}

func TestUserRepository(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)

	user := &domain.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "digest",
		Active:       true,
		Role:         domain.RoleAdmin,
	}
	id, err := users.Create(context.Background(), user)
	require.NoError(t, err)

	byName, err := users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, id, byName.ID)
	require.Equal(t, domain.RoleAdmin, byName.Role)
	require.True(t, byName.Active)

	byID, err := users.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	_, err = users.GetByUsername(context.Background(), "nobody")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = users.Create(context.Background(), &domain.User{Username: "alice", PasswordHash: "x"})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)
}
