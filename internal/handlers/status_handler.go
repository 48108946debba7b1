package handlers

import (
	"net/http"
	"time"

	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/belphemur/athan-scheduler/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StatusHandler serves the live status endpoints polled by browsers
type StatusHandler struct {
	*BaseHandler
	logger zerolog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(baseHandler *BaseHandler) *StatusHandler {
	return &StatusHandler{
		BaseHandler: baseHandler,
		logger:      baseHandler.logger.With().Str("handler", "status").Logger(),
	}
}

// RegisterRoutes registers the status routes
func (h *StatusHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.handleHealth)
	api := r.Group("/api/status")
	api.GET("/next", h.handleNext)
	api.GET("/play", h.handlePlay)
	api.GET("/muted", h.handleMuted)
}

// NextResponse is the body of GET /api/status/next
type NextResponse struct {
	Next *status.Upcoming `json:"next"`
}

func (h *StatusHandler) handleHealth(c *gin.Context) {
	cal := h.Calendar.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"degraded": cal.Degraded,
		"calendar": cal,
	})
}

func (h *StatusHandler) handleNext(c *gin.Context) {
	next, err := h.Status.NextUpcoming(c.Request.Context(), h.Now())
	if err != nil {
		h.RespondError(c, http.StatusServiceUnavailable, ErrCodeCalendarUnavailable, err)
		return
	}
	// The countdown changes on every request; the ETag follows the prayer only
	var validator any
	if next != nil {
		validator = struct {
			Event prayer.Event `json:"event"`
			At    time.Time    `json:"at"`
		}{next.Event, next.At}
	}
	h.RespondWithETagOf(c, validator, NextResponse{Next: next})
}

// handlePlay consumes a one-shot mute when it applies: polling is the browser's trigger
func (h *StatusHandler) handlePlay(c *gin.Context) {
	play, err := h.Status.ShouldPlay(c.Request.Context(), h.Now())
	if err != nil {
		h.RespondError(c, http.StatusServiceUnavailable, ErrCodeCalendarUnavailable, err)
		return
	}
	if play.Play {
		h.logger.Info().Str("prayer", string(play.Event.Name)).Str("date", play.Event.Date).Msg("Browser playback allowed")
	}
	c.JSON(http.StatusOK, play)
}

func (h *StatusHandler) handleMuted(c *gin.Context) {
	muted, err := h.Status.Muted(c.Request.Context(), h.Now())
	if err != nil {
		h.RespondError(c, http.StatusServiceUnavailable, ErrCodeCalendarUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, muted)
}
