package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tutorgo/internal/tutor"
)

type messageRequest struct {
	Content string  `json:"content"`
	TrackID *string `json:"track_id"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	profile, ok := h.currentProfile(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session := h.tutors.Session(profile)
	if req.TrackID != nil {
		session.SetTrack(*req.TrackID)
	}
	reply, err := session.SendMessage(c.Request.Context(), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, tutor.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, tutor.ErrSessionClosed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{
				"error":         "tutor unavailable, please retry",
				"notifications": h.drainNotifications(profile.ID),
			})
		}
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) getTranscript(c *gin.Context) {
	profile, ok := h.currentProfile(c)
	if !ok {
		return
	}
	session := h.tutors.Session(profile)
	c.JSON(http.StatusOK, gin.H{
		"track_id": session.TrackID(),
		"messages": session.Transcript(),
	})
}

func (h *Handler) clearConversation(c *gin.Context) {
	profile, ok := h.currentProfile(c)
	if !ok {
		return
	}
	h.tutors.Session(profile).ClearConversation()
	c.Status(http.StatusNoContent)
}

func (h *Handler) setTrack(c *gin.Context) {
	profile, ok := h.currentProfile(c)
	if !ok {
		return
	}
	var req struct {
		TrackID string `json:"track_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session := h.tutors.Session(profile)
	session.SetTrack(req.TrackID)
	c.JSON(http.StatusOK, gin.H{"track_id": session.TrackID()})
}

func (h *Handler) refreshHistory(c *gin.Context) {
	profile, ok := h.currentProfile(c)
	if !ok {
		return
	}
	history, err := h.tutors.Session(profile).RefreshHistory(c.Request.Context())
	if err != nil {
		h.internalError(c, "refresh history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) getHistory(c *gin.Context) {
	profile, ok := h.currentProfile(c)
	if !ok {
		return
	}
	history, err := h.tutors.Session(profile).LearningHistory(c.Request.Context())
	if err != nil {
		h.internalError(c, "load history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) getNotifications(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": h.drainNotifications(userID)})
}

func (h *Handler) drainNotifications(userID string) []tutor.Notification {
	if h.inbox == nil {
		return []tutor.Notification{}
	}
	return h.inbox.Drain(userID)
}
