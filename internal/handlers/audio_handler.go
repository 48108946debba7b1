package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/player"
	"github.com/belphemur/athan-scheduler/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// AudioHandler serves manual playback, the playback history and the armed triggers
type AudioHandler struct {
	*BaseHandler
	logger zerolog.Logger
}

// NewAudioHandler creates a new audio handler
func NewAudioHandler(baseHandler *BaseHandler) *AudioHandler {
	return &AudioHandler{
		BaseHandler: baseHandler,
		logger:      baseHandler.logger.With().Str("handler", "audio").Logger(),
	}
}

// RegisterRoutes registers audio related routes
func (h *AudioHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/audio/test", h.handleTest)
	r.POST("/api/audio/stop", h.handleStop)
	r.GET("/api/history", h.handleHistory)
	r.GET("/api/scheduler/armed", h.handleArmed)
}

// ArmedResponse is the body of GET /api/scheduler/armed
type ArmedResponse struct {
	Armed []scheduler.ArmedTrigger `json:"armed"`
}

func (h *AudioHandler) handleTest(c *gin.Context) {
	decision, err := h.Gate.TestPlayback(c.Request.Context(), h.Now())
	switch {
	case errors.Is(err, player.ErrMissingAsset):
		h.RespondError(c, http.StatusNotFound, ErrCodeMissingAudioAsset, err)
		return
	case err != nil:
		h.RespondError(c, http.StatusInternalServerError, ErrCodePlaybackFailed, err)
		return
	}
	h.RespondSuccess(c, SuccessCodePlaybackStarted, decision)
}

func (h *AudioHandler) handleStop(c *gin.Context) {
	if err := h.Gate.StopPlayback(c.Request.Context()); err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodePlaybackFailed, err)
		return
	}
	h.logger.Info().Msg("Playback stopped on request")
	h.RespondSuccess(c, SuccessCodePlaybackStopped, nil)
}

// handleHistory lists the latest playback decisions, ?limit= capped at maxHistoryLimit
func (h *AudioHandler) handleHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err)
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	entries := []database.PlaybackEntry{}
	if h.Playback != nil {
		recent, err := h.Playback.Recent(c.Request.Context(), limit)
		if err != nil {
			h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
			return
		}
		if recent != nil {
			entries = recent
		}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (h *AudioHandler) handleArmed(c *gin.Context) {
	if h.Scheduler == nil {
		h.RespondError(c, http.StatusServiceUnavailable, ErrCodeSchedulerUnavailable, nil)
		return
	}
	c.JSON(http.StatusOK, ArmedResponse{Armed: h.Scheduler.Armed()})
}
