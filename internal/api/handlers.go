package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tutorgo/internal/auth"
	"tutorgo/internal/generator"
	"tutorgo/internal/models"
	"tutorgo/internal/service/learning"
	"tutorgo/internal/tutor"
)

// NotesLoader turns an uploaded notes file into plain text.
type NotesLoader interface {
	Load(ctx context.Context, path string) (string, error)
}

// Deps are the services the HTTP layer is wired to.
type Deps struct {
	Learning  *learning.Service
	Auth      *auth.Service
	Tutors    *tutor.Manager
	Inbox     *tutor.Inbox
	Generator *generator.Service
	Notes     NotesLoader
	UploadDir string
	Logger    *slog.Logger
}

// Handler wires HTTP routes to the learning store, the tutor sessions and the
// content generators.
type Handler struct {
	learning  *learning.Service
	auth      *auth.Service
	tutors    *tutor.Manager
	inbox     *tutor.Inbox
	generator *generator.Service
	notes     NotesLoader
	uploadDir string
	logger    *slog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.UploadDir == "" {
		d.UploadDir = "./data/uploads"
	}
	return &Handler{
		learning:  d.Learning,
		auth:      d.Auth,
		tutors:    d.Tutors,
		inbox:     d.Inbox,
		generator: d.Generator,
		notes:     d.Notes,
		uploadDir: d.UploadDir,
		logger:    d.Logger,
	}
}

// check token user id matches the path user id
func (h *Handler) requirePathUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		paramID := strings.TrimSpace(c.Param("id"))
		if paramID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		if paramID != userID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user mismatch"})
			return
		}
		c.Next()
	}
}

func (h *Handler) authorizedUserID(c *gin.Context) (string, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return "", false
	}
	return userID, true
}

// currentProfile loads the authenticated profile. It writes the error
// response itself when it returns false.
func (h *Handler) currentProfile(c *gin.Context) (*models.Profile, bool) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return nil, false
	}
	profile, err := h.learning.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return nil, false
		}
		h.internalError(c, "load profile", err)
		return nil, false
	}
	return profile, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)

	authMW := h.auth.Middleware()
	csrfMW := h.auth.CSRFMiddleware()

	trackRoutes := api.Group("/tracks")
	trackRoutes.Use(authMW, csrfMW)
	trackRoutes.POST("", h.createTrack)
	trackRoutes.POST("/:track_id/skills", h.addSkill)

	userRoutes := api.Group("/users/:id")
	userRoutes.Use(authMW, h.requirePathUser(), csrfMW)
	userRoutes.GET("/profile", h.getProfile)
	userRoutes.POST("/chat/msg", h.sendMessage)
	userRoutes.GET("/chat/transcript", h.getTranscript)
	userRoutes.DELETE("/chat", h.clearConversation)
	userRoutes.PUT("/chat/track", h.setTrack)
	userRoutes.POST("/chat/history/refresh", h.refreshHistory)
	userRoutes.GET("/chat/notifications", h.getNotifications)
	userRoutes.GET("/history", h.getHistory)
	userRoutes.POST("/generate/flashcards", h.generateFlashcards)
	userRoutes.POST("/generate/quiz", h.generateQuiz)
	userRoutes.POST("/generate/homework", h.generateHomework)
	userRoutes.POST("/notes", h.uploadNotes)
	userRoutes.POST("/lessons", h.recordLesson)
	userRoutes.PUT("/quizzes/:quiz_id/score", h.scoreQuiz)
	userRoutes.POST("/tracks/:track_id", h.joinTrack)
	userRoutes.DELETE("/tracks/:track_id", h.leaveTrack)
	userRoutes.GET("/appointments", h.listAppointments)
	userRoutes.POST("/appointments", h.scheduleAppointment)
	userRoutes.POST("/logout", h.logoutUser)
	userRoutes.DELETE("", h.deleteUser)
}

type registerRequest struct {
	Username string            `json:"username"`
	Password string            `json:"password"`
	FullName string            `json:"full_name"`
	Role     models.Capability `json:"role"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	profile, err := h.learning.RegisterProfile(c.Request.Context(), req.Username, req.Password, req.FullName, req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, profile)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	profile, err := h.learning.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), profile.ID)
	if err != nil {
		h.internalError(c, "issue token", err)
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		h.internalError(c, "issue csrf token", err)
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":         profile.ID,
		"username":   profile.Username,
		"role":       profile.Role,
		"created_at": profile.CreatedAt,
		"auth_token": authToken,
	})
}

func (h *Handler) getProfile(c *gin.Context) {
	profile, ok := h.currentProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) logoutUser(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	h.tutors.EndSession(c.Request.Context(), userID)
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		if err := h.auth.RevokeToken(c.Request.Context(), authToken); err != nil {
			h.logger.Warn("revoke token on logout", "user_id", userID, "error", err)
		}
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.auth.RevokeUserTokens(c.Request.Context(), id); err != nil {
		h.internalError(c, "revoke tokens", err)
		return
	}
	h.tutors.EndSession(c.Request.Context(), id)
	if err := h.learning.DeleteProfile(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.logger.Error(op, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}
