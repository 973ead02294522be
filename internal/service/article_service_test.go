package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"article-service/internal/cache"
	"article-service/internal/domain"
	"article-service/internal/repository"
)

type fakeArticles struct {
	byID      map[int64]*domain.Article
	nextID    int64
	listCalls int
	listErr   error
}

var _ repository.ArticleRepository = (*fakeArticles)(nil)

func newFakeArticles() *fakeArticles {
	return &fakeArticles{byID: map[int64]*domain.Article{}}
}

func (f *fakeArticles) Init(context.Context) error { return nil }

func (f *fakeArticles) Create(_ context.Context, article *domain.Article) (int64, error) {
	f.nextID++
	article.ID = f.nextID
	cpy := *article
	f.byID[article.ID] = &cpy
	return article.ID, nil
}

func (f *fakeArticles) Update(_ context.Context, article *domain.Article) error {
	if _, ok := f.byID[article.ID]; !ok {
		return fmt.Errorf("article %d: %w", article.ID, repository.ErrNotFound)
	}
	cpy := *article
	f.byID[article.ID] = &cpy
	return nil
}

func (f *fakeArticles) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return fmt.Errorf("article %d: %w", id, repository.ErrNotFound)
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeArticles) Get(_ context.Context, id int64) (*domain.Article, error) {
	article, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("article %d: %w", id, repository.ErrNotFound)
	}
	cpy := *article
	return &cpy, nil
}

func (f *fakeArticles) List(_ context.Context, q repository.ArticleQuery) ([]domain.Article, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	ids := make([]int64, 0, len(f.byID))
	for id := range f.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var all []domain.Article
	for _, id := range ids {
		article := *f.byID[id]
		if q.AuthorID != nil && article.AuthorID != *q.AuthorID {
			continue
		}
		all = append(all, article)
	}

	offset := q.Offset()
	if offset >= len(all) {
		return []domain.Article{}, nil
	}
	end := offset + q.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func newArticleService(articles repository.ArticleRepository, ttl time.Duration) ArticleService {
	return NewArticleService(articles, cache.New(ttl), time.Second)
}

func TestCreateForcesOwner(t *testing.T) {
	articles := newFakeArticles()
	svc := newArticleService(articles, cache.DefaultTTL)
	actor := &domain.User{ID: 7, Role: domain.RoleUser}

	article, err := svc.Create(context.Background(), actor, ArticleInput{Title: "hello"})
	require.NoError(t, err)
	require.Equal(t, int64(7), article.AuthorID)
}

func TestUpdateOrdering(t *testing.T) {
	articles := newFakeArticles()
	svc := newArticleService(articles, cache.DefaultTTL)

	owner := &domain.User{ID: 2, Role: domain.RoleUser}
	admin := &domain.User{ID: 1, Role: domain.RoleAdmin}
	stranger := &domain.User{ID: 3, Role: domain.RoleUser}

	created, err := svc.Create(context.Background(), owner, ArticleInput{Title: "original"})
	require.NoError(t, err)

	// A missing article is always not-found, even for a caller whose
	// authorization would have failed. Nothing may leak the difference.
	_, err = svc.Update(context.Background(), stranger, 9999, ArticleInput{Title: "x"})
	require.ErrorIs(t, err, ErrArticleNotFound)

	// Forbidden only once the article is known to exist.
	_, err = svc.Update(context.Background(), stranger, created.ID, ArticleInput{Title: "x"})
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(context.Background(), owner, created.ID, ArticleInput{Title: "owner edit"})
	require.NoError(t, err)
	require.Equal(t, "owner edit", updated.Title)

	updated, err = svc.Update(context.Background(), admin, created.ID, ArticleInput{Title: "admin edit"})
	require.NoError(t, err)
	require.Equal(t, "admin edit", updated.Title)
}

func TestDeleteOrdering(t *testing.T) {
	articles := newFakeArticles()
	svc := newArticleService(articles, cache.DefaultTTL)

	owner := &domain.User{ID: 2, Role: domain.RoleUser}
	stranger := &domain.User{ID: 3, Role: domain.RoleUser}

	created, err := svc.Create(context.Background(), owner, ArticleInput{Title: "doomed"})
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), stranger, 9999)
	require.ErrorIs(t, err, ErrArticleNotFound)

	_, err = svc.Delete(context.Background(), stranger, created.ID)
	require.ErrorIs(t, err, ErrForbidden)

	deleted, err := svc.Delete(context.Background(), owner, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, deleted.ID)

	_, err = svc.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrArticleNotFound)
}

func TestListCachesWithinTTL(t *testing.T) {
	articles := newFakeArticles()
	svc := newArticleService(articles, cache.DefaultTTL)
	owner := &domain.User{ID: 1, Role: domain.RoleUser}

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), owner, ArticleInput{Title: fmt.Sprintf("a%d", i)})
		require.NoError(t, err)
	}

	query := repository.ArticleQuery{Page: 1, PerPage: 10}
	first, err := svc.List(context.Background(), query)
	require.NoError(t, err)
	second, err := svc.List(context.Background(), query)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, articles.listCalls, "second identical read must be served from cache")

	// Different parameters miss the cache.
	other := int64(1)
	_, err = svc.List(context.Background(), repository.ArticleQuery{Page: 1, PerPage: 10, AuthorID: &other})
	require.NoError(t, err)
	require.Equal(t, 2, articles.listCalls)
}

func TestListRefreshesAfterTTL(t *testing.T) {
	articles := newFakeArticles()
	svc := newArticleService(articles, 30*time.Millisecond)
	owner := &domain.User{ID: 1, Role: domain.RoleUser}

	_, err := svc.Create(context.Background(), owner, ArticleInput{Title: "only"})
	require.NoError(t, err)

	query := repository.ArticleQuery{Page: 1, PerPage: 10}
	_, err = svc.List(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, 1, articles.listCalls)

	time.Sleep(50 * time.Millisecond)

	// Past the TTL the repository is queried again even if nothing changed.
	_, err = svc.List(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, 2, articles.listCalls)
}

func TestListBoundedStaleness(t *testing.T) {
	articles := newFakeArticles()
	svc := newArticleService(articles, cache.DefaultTTL)
	owner := &domain.User{ID: 1, Role: domain.RoleUser}

	_, err := svc.Create(context.Background(), owner, ArticleInput{Title: "first"})
	require.NoError(t, err)

	query := repository.ArticleQuery{Page: 1, PerPage: 10}
	before, err := svc.List(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, before, 1)

	// A write does not invalidate the cached page within the TTL window.
	_, err = svc.Create(context.Background(), owner, ArticleInput{Title: "second"})
	require.NoError(t, err)

	after, err := svc.List(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, after, 1, "cached page stays stale until the TTL elapses")
}

func TestListMapsPoolTimeoutToBusy(t *testing.T) {
	articles := newFakeArticles()
	articles.listErr = context.DeadlineExceeded
	svc := newArticleService(articles, cache.DefaultTTL)

	_, err := svc.List(context.Background(), repository.ArticleQuery{Page: 1, PerPage: 10})
	require.ErrorIs(t, err, ErrBusy)
}
