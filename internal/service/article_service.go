package service

import (
	"context"
	"errors"
	"time"

	"article-service/internal/cache"
	"article-service/internal/domain"
	"article-service/internal/repository"
)

var (
	// ErrArticleNotFound indicates the requested article does not exist.
	ErrArticleNotFound = errors.New("article not found")
	// ErrForbidden indicates the acting user may not mutate the article.
	// Only reachable once the article is known to exist.
	ErrForbidden = errors.New("not enough permissions")
	// ErrBusy indicates the storage pool could not serve the call in time.
	ErrBusy = errors.New("storage busy")
)

// ArticleInput carries the client-editable fields of an article. The owner is
// never part of the input: on create it is forced to the acting user.
type ArticleInput struct {
	Title         string
	Content       string
	PublishedDate *time.Time
}

// ArticleService coordinates article operations backed by the repository and
// the listing cache.
type ArticleService interface {
	Create(ctx context.Context, actor *domain.User, input ArticleInput) (*domain.Article, error)
	Get(ctx context.Context, id int64) (*domain.Article, error)
	List(ctx context.Context, query repository.ArticleQuery) ([]domain.Article, error)
	Update(ctx context.Context, actor *domain.User, id int64, input ArticleInput) (*domain.Article, error)
	Delete(ctx context.Context, actor *domain.User, id int64) (*domain.Article, error)
}

type articleService struct {
	articles    repository.ArticleRepository
	cache       *cache.ArticleCache
	busyTimeout time.Duration
}

func NewArticleService(articles repository.ArticleRepository, pageCache *cache.ArticleCache, busyTimeout time.Duration) ArticleService {
	return &articleService{
		articles:    articles,
		cache:       pageCache,
		busyTimeout: busyTimeout,
	}
}

func (s *articleService) Create(ctx context.Context, actor *domain.User, input ArticleInput) (*domain.Article, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if input.Title == "" {
		return nil, errors.New("title is required")
	}

	article := &domain.Article{
		Title:         input.Title,
		Content:       input.Content,
		PublishedDate: input.PublishedDate,
		AuthorID:      actor.ID,
	}

	ctx, cancel := s.withBusyTimeout(ctx)
	defer cancel()
	if _, err := s.articles.Create(ctx, article); err != nil {
		return nil, mapStorageErr(err)
	}
	return article, nil
}

func (s *articleService) Get(ctx context.Context, id int64) (*domain.Article, error) {
	ctx, cancel := s.withBusyTimeout(ctx)
	defer cancel()

	article, err := s.articles.Get(ctx, id)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return article, nil
}

// List serves paginated reads through the cache. A hit within the TTL window
// skips the repository entirely; a miss queries and fills the key.
func (s *articleService) List(ctx context.Context, query repository.ArticleQuery) ([]domain.Article, error) {
	key := cache.Key(query.Page, query.PerPage, query.AuthorID, query.PublishedOn)
	if articles, ok := s.cache.Get(key); ok {
		return articles, nil
	}

	ctx, cancel := s.withBusyTimeout(ctx)
	defer cancel()

	articles, err := s.articles.List(ctx, query)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	s.cache.Put(key, articles)
	return articles, nil
}

// Update applies the resource-exists-then-ownership ordering: a missing
// article reports not found no matter who asks, and the permission check only
// runs once the owner is known.
func (s *articleService) Update(ctx context.Context, actor *domain.User, id int64, input ArticleInput) (*domain.Article, error) {
	ctx, cancel := s.withBusyTimeout(ctx)
	defer cancel()

	article, err := s.articles.Get(ctx, id)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	if !actor.CanMutate(article.AuthorID) {
		return nil, ErrForbidden
	}

	article.Title = input.Title
	article.Content = input.Content
	article.PublishedDate = input.PublishedDate

	// The article may vanish between the owner lookup and the write; that
	// surfaces as a plain not-found on the second look.
	if err := s.articles.Update(ctx, article); err != nil {
		return nil, mapStorageErr(err)
	}
	return article, nil
}

func (s *articleService) Delete(ctx context.Context, actor *domain.User, id int64) (*domain.Article, error) {
	ctx, cancel := s.withBusyTimeout(ctx)
	defer cancel()

	article, err := s.articles.Get(ctx, id)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	if !actor.CanMutate(article.AuthorID) {
		return nil, ErrForbidden
	}

	if err := s.articles.Delete(ctx, id); err != nil {
		return nil, mapStorageErr(err)
	}
	return article, nil
}

// withBusyTimeout bounds how long a call may wait on the connection pool so
// exhaustion degrades into ErrBusy instead of an indefinite block.
func (s *articleService) withBusyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.busyTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.busyTimeout)
}

func mapStorageErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrArticleNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ErrBusy
	default:
		return err
	}
}
