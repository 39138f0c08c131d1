package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"codeshare/internal/auth"
	"codeshare/internal/models"
	"codeshare/internal/service/account"
	"codeshare/internal/service/executor"
	"codeshare/internal/service/store"
)

// Handler wires HTTP routes to the session store, the execution
// gateway, and the account/auth services.
type Handler struct {
	store    *store.Service
	accounts *account.Service
	auth     *auth.Service
	executor *executor.Service
}

// NewHandler constructs a Handler instance.
func NewHandler(sessions *store.Service, accounts *account.Service, authService *auth.Service, exec *executor.Service) *Handler {
	return &Handler{
		store:    sessions,
		accounts: accounts,
		auth:     authService,
		executor: exec,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/auth/signup", h.signup)
	api.POST("/auth/login", h.login)

	authMW := h.auth.Middleware()
	authed := api.Group("", authMW)
	authed.GET("/auth/me", h.currentUser)
	authed.POST("/auth/logout", h.logout)

	sessions := authed.Group("/sessions")
	sessions.POST("", h.createSession)
	sessions.GET("", h.listSessions)
	sessions.GET("/:id", h.getSession)
	sessions.PUT("/:id", h.updateSession)
	sessions.DELETE("/:id", h.deleteSession)
	sessions.POST("/:id/execute", h.executeCode)
	sessions.GET("/:id/participants", h.getParticipants)
}

func (h *Handler) authorizedUser(c *gin.Context) (string, string, bool) {
	userID, username, ok := auth.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return "", "", false
	}
	return userID, username, true
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.Signup(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.auth.IssueToken(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":         user,
		"access_token": token,
		"token_type":   "bearer",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token, err := h.auth.IssueToken(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (h *Handler) currentUser(c *gin.Context) {
	userID, _, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	user, err := h.accounts.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) logout(c *gin.Context) {
	if _, _, ok := h.authorizedUser(c); !ok {
		return
	}
	if token, ok := auth.TokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), token)
	}
	c.Status(http.StatusNoContent)
}

type createSessionRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Language    models.Language `json:"language"`
}

func (h *Handler) createSession(c *gin.Context) {
	userID, username, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session, err := h.store.Create(c.Request.Context(), userID, username, req.Title, req.Description, req.Language)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) listSessions(c *gin.Context) {
	if _, _, ok := h.authorizedUser(c); !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, total, err := h.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

// getSession returns the full session and joins the requester as a
// participant (join-on-view). Re-adding on every poll is a no-op.
func (h *Handler) getSession(c *gin.Context) {
	userID, username, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.store.AddParticipant(c.Request.Context(), id, userID, username); err != nil {
		h.sessionError(c, err)
		return
	}
	session, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) updateSession(c *gin.Context) {
	if _, _, ok := h.authorizedUser(c); !ok {
		return
	}
	var update models.SessionUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session, err := h.store.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) deleteSession(c *gin.Context) {
	userID, _, ok := h.authorizedUser(c)
	if !ok {
		return
	}
	id := c.Param("id")
	session, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	if session.CreatedBy != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the session creator can delete"})
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.sessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// executeCode runs the submitted payload and returns the result. The
// session record is never mutated by a run.
func (h *Handler) executeCode(c *gin.Context) {
	if _, _, ok := h.authorizedUser(c); !ok {
		return
	}
	id := c.Param("id")
	if _, err := h.store.Get(c.Request.Context(), id); err != nil {
		h.sessionError(c, err)
		return
	}
	var req models.ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !req.Language.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported language"})
		return
	}
	result, err := h.executor.Execute(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getParticipants(c *gin.Context) {
	if _, _, ok := h.authorizedUser(c); !ok {
		return
	}
	participants, err := h.store.Participants(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (h *Handler) sessionError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
