package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tutorgo/internal/config"
	"tutorgo/internal/generator"
	"tutorgo/internal/models"
)

var allowedNotesExt = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
}

func generate[T any](h *Handler, c *gin.Context, fn func(context.Context, generator.Request) (*generator.Result[T], error)) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req generator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.UserID = userID
	respondGenerated(h, c, req, fn)
}

func respondGenerated[T any](h *Handler, c *gin.Context, req generator.Request, fn func(context.Context, generator.Request) (*generator.Result[T], error)) {
	res, err := fn(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, generator.ErrNoInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("generate content", "path", c.FullPath(), "user_id", req.UserID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "content generation failed, please retry"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) generateFlashcards(c *gin.Context) {
	generate(h, c, h.generator.Flashcards)
}

func (h *Handler) generateQuiz(c *gin.Context) {
	generate(h, c, h.generator.Quiz)
}

func (h *Handler) generateHomework(c *gin.Context) {
	generate(h, c, h.generator.Homework)
}

// uploadNotes stores the notes file, extracts its text and turns it into flashcards.
func (h *Handler) uploadNotes(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if h.notes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notes upload disabled"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxNotesUploadBytes+1<<20)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > config.MaxNotesUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedNotesExt[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	destDir := filepath.Join(h.uploadDir, userID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		h.internalError(c, "create upload directory", err)
		return
	}
	destPath := filepath.Join(destDir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, destPath); err != nil {
		h.internalError(c, "save upload", err)
		return
	}
	defer func() {
		if err := os.Remove(destPath); err != nil {
			h.logger.Warn("remove uploaded notes", "path", destPath, "error", err)
		}
	}()

	text, err := h.notes.Load(c.Request.Context(), destPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	count, _ := strconv.Atoi(c.PostForm("count"))
	persist, _ := strconv.ParseBool(c.PostForm("persist"))
	topic := c.PostForm("topic")
	if strings.TrimSpace(topic) == "" {
		topic = strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename))
	}
	respondGenerated(h, c, generator.Request{
		UserID:     userID,
		TrackID:    c.PostForm("track_id"),
		Topic:      topic,
		SourceText: text,
		Count:      count,
		Difficulty: c.PostForm("difficulty"),
		Persist:    persist,
	}, h.generator.Flashcards)
}

func (h *Handler) recordLesson(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req struct {
		TrackID string `json:"track_id"`
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id, err := h.learning.SaveLesson(c.Request.Context(), models.Lesson{
		StudentID: userID,
		TrackID:   req.TrackID,
		Title:     req.Title,
		Summary:   req.Summary,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.tutors.InvalidateHistory(c.Request.Context(), userID)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) scoreQuiz(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req struct {
		Score decimal.Decimal `json:"score"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Score.IsNegative() || req.Score.GreaterThan(decimal.NewFromInt(100)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be between 0 and 100"})
		return
	}
	if err := h.learning.GradeQuiz(c.Request.Context(), userID, c.Param("quiz_id"), req.Score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "quiz not found"})
			return
		}
		h.internalError(c, "score quiz", err)
		return
	}
	h.tutors.InvalidateHistory(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) joinTrack(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.learning.JoinTrack(c.Request.Context(), userID, c.Param("track_id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.tutors.InvalidateHistory(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) leaveTrack(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.learning.LeaveTrack(c.Request.Context(), userID, c.Param("track_id")); err != nil {
		h.internalError(c, "leave track", err)
		return
	}
	h.tutors.InvalidateHistory(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

// tracks and skills are curated by tutors
func (h *Handler) requireTutor(c *gin.Context) bool {
	profile, ok := h.currentProfile(c)
	if !ok {
		return false
	}
	if profile.Role != models.CapabilityTutor {
		c.JSON(http.StatusForbidden, gin.H{"error": "tutor role required"})
		return false
	}
	return true
}

func (h *Handler) createTrack(c *gin.Context) {
	if !h.requireTutor(c) {
		return
	}
	var req struct {
		Name    string `json:"name"`
		Subject string `json:"subject"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id, err := h.learning.CreateTrack(c.Request.Context(), req.Name, req.Subject)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) addSkill(c *gin.Context) {
	if !h.requireTutor(c) {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id, err := h.learning.AddSkill(c.Request.Context(), c.Param("track_id"), req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) listAppointments(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	appts, err := h.learning.UpcomingAppointments(c.Request.Context(), userID, time.Now().UTC(), limit)
	if err != nil {
		h.internalError(c, "list appointments", err)
		return
	}
	if appts == nil {
		appts = make([]models.Appointment, 0)
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

func (h *Handler) scheduleAppointment(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req struct {
		TutorID     string    `json:"tutor_id"`
		Subject     string    `json:"subject"`
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !req.ScheduledAt.After(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at must be in the future"})
		return
	}
	appt, err := h.learning.ScheduleAppointment(c.Request.Context(), models.Appointment{
		StudentID:   userID,
		TutorID:     req.TutorID,
		Subject:     req.Subject,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("schedule appointment: %v", err)})
		return
	}
	c.JSON(http.StatusCreated, appt)
}
