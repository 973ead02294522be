// Package http wires HTTP routes to domain services.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"article-service/internal/auth"
	"article-service/internal/domain"
	"article-service/internal/repository"
	"article-service/internal/service"
)

const dateLayout = "2006-01-02"

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	articles service.ArticleService
	tokens   *auth.TokenService
	logger   *logrus.Logger
}

func NewHandler(users service.UserService, articles service.ArticleService, tokens *auth.TokenService, logger *logrus.Logger) *Handler {
	return &Handler{
		users:    users,
		articles: articles,
		tokens:   tokens,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), corsMiddleware())

	router.POST("/auth/token", h.login)
	router.POST("/auth/register", h.register)

	router.GET("/articles", h.listArticles)
	router.GET("/articles/:id", h.getArticle)

	protected := router.Group("/articles", h.requireUser())
	{
		protected.POST("", h.createArticle)
		protected.PUT("/:id", h.updateArticle)
		protected.DELETE("/:id", h.deleteArticle)
	}

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
}

type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) login(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetail(err)})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
			return
		}
		h.writeServiceError(c, err)
		return
	}

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

type registerRequest struct {
	Username       string `json:"username" binding:"required"`
	Email          string `json:"email" binding:"omitempty,email"`
	Password       string `json:"password" binding:"required,min=8"`
	RegisterSecret string `json:"register_secret" binding:"required"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
	Role     string `json:"role"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetail(err)})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.RegisterSecret)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRegistrationSecret):
			c.JSON(http.StatusForbidden, gin.H{"detail": "Invalid registration secret"})
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"detail": "Username already taken"})
		default:
			h.writeServiceError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, userToResponse(user))
}

type articleRequest struct {
	Title         string  `json:"title" binding:"required"`
	Content       string  `json:"content"`
	PublishedDate *string `json:"published_date" binding:"omitempty,datetime=2006-01-02"`
	// AuthorID is accepted for wire compatibility but never trusted; the
	// owner is always the authenticated caller.
	AuthorID *int64 `json:"author_id"`
}

type ArticleResponse struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	PublishedDate *string `json:"published_date"`
	AuthorID      int64   `json:"author_id"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func (h *Handler) createArticle(c *gin.Context) {
	var req articleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetail(err)})
		return
	}

	input, err := articleInput(req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	article, err := h.articles.Create(c.Request.Context(), currentUser(c), input)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, articleToResponse(*article))
}

func (h *Handler) getArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	article, err := h.articles.Get(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, articleToResponse(*article))
}

func (h *Handler) updateArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req articleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetail(err)})
		return
	}

	input, err := articleInput(req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	article, err := h.articles.Update(c.Request.Context(), currentUser(c), id, input)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, articleToResponse(*article))
}

func (h *Handler) deleteArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	article, err := h.articles.Delete(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": article.ID})
}

func (h *Handler) listArticles(c *gin.Context) {
	query := repository.ArticleQuery{Page: 1, PerPage: 10}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "page must be an integer >= 1"})
			return
		}
		query.Page = page
	}
	if raw := c.Query("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 || perPage > 200 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "per_page must be an integer between 1 and 200"})
			return
		}
		query.PerPage = perPage
	}
	if raw := c.Query("author_id"); raw != "" {
		authorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "author_id must be an integer"})
			return
		}
		query.AuthorID = &authorID
	}
	if raw := c.Query("date"); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "date must be formatted YYYY-MM-DD"})
			return
		}
		query.PublishedOn = &day
	}

	articles, err := h.articles.List(c.Request.Context(), query)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	resp := make([]ArticleResponse, len(articles))
	for i := range articles {
		resp[i] = articleToResponse(articles[i])
	}
	c.JSON(http.StatusOK, resp)
}

// writeServiceError maps service sentinels to the HTTP surface. Anything
// unrecognized is logged and surfaced as an opaque 500; auth failures are
// handled before this point and never reach the 5xx branch.
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrArticleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Article not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"detail": "Not enough permissions"})
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Service temporarily unavailable"})
	default:
		h.logger.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}
}

func articleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid article id"})
		return 0, false
	}
	return id, true
}

func articleInput(req articleRequest) (service.ArticleInput, error) {
	input := service.ArticleInput{
		Title:   req.Title,
		Content: req.Content,
	}
	if req.PublishedDate != nil {
		day, err := time.Parse(dateLayout, *req.PublishedDate)
		if err != nil {
			return service.ArticleInput{}, errors.New("published_date must be formatted YYYY-MM-DD")
		}
		input.PublishedDate = &day
	}
	return input, nil
}

func validationDetail(err error) any {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]gin.H, len(fieldErrs))
		for i, fe := range fieldErrs {
			details[i] = gin.H{"field": fe.Field(), "rule": fe.Tag()}
		}
		return details
	}
	return err.Error()
}

func userToResponse(user *domain.User) userResponse {
	return userResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Active:   user.Active,
		Role:     string(user.Role),
	}
}

func articleToResponse(article domain.Article) ArticleResponse {
	resp := ArticleResponse{
		ID:        article.ID,
		Title:     article.Title,
		Content:   article.Content,
		AuthorID:  article.AuthorID,
		CreatedAt: article.CreatedAt.Format(time.RFC3339),
		UpdatedAt: article.UpdatedAt.Format(time.RFC3339),
	}
	if article.PublishedDate != nil {
		v := article.PublishedDate.Format(dateLayout)
		resp.PublishedDate = &v
	}
	return resp
}
