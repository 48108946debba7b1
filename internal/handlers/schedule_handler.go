package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ScheduleHandler edits the schedule matrix, the weekday mutes and the one-shot mute
type ScheduleHandler struct {
	*BaseHandler
	logger zerolog.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(baseHandler *BaseHandler) *ScheduleHandler {
	return &ScheduleHandler{
		BaseHandler: baseHandler,
		logger:      baseHandler.logger.With().Str("handler", "schedule").Logger(),
	}
}

// RegisterRoutes registers the schedule and mute routes
func (h *ScheduleHandler) RegisterRoutes(r gin.IRouter) {
	schedule := r.Group("/api/schedule")
	schedule.GET("", h.handleGrid)
	schedule.PUT("/cell", h.handleCell)
	schedule.PUT("/row/:prayer", h.handleRow)
	schedule.PUT("/column/:weekday", h.handleColumn)
	schedule.PUT("/all", h.handleAll)

	mute := r.Group("/api/mute")
	mute.GET("/next", h.handleGetNextMute)
	mute.PUT("/next", h.handleSetNextMute)
	mute.GET("/weekday", h.handleWeekdayMutes)
	mute.PUT("/weekday/:weekday", h.handleSetWeekdayMute)
}

// CellRequest switches a single matrix cell
type CellRequest struct {
	Prayer  string `json:"prayer" binding:"required"`
	Weekday *int   `json:"weekday" binding:"required"`
	Enabled *bool  `json:"enabled" binding:"required"`
}

// ToggleRequest switches a row, a column or the whole matrix
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// NextMuteRequest sets or clears the one-shot mute
type NextMuteRequest struct {
	Skip *bool `json:"skip" binding:"required"`
}

// WeekdayMuteRequest sets or clears a whole-day mute
type WeekdayMuteRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

func (h *ScheduleHandler) handleGrid(c *gin.Context) {
	grid, err := h.Matrix.Grid(c.Request.Context())
	if err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}

func (h *ScheduleHandler) handleCell(c *gin.Context) {
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err)
		return
	}
	name, err := prayer.ParseCanonical(req.Prayer)
	if err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeUnknownPrayer, err)
		return
	}
	weekday, err := constants.ParseWeekday(*req.Weekday)
	if err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidWeekday, err)
		return
	}

	if err := h.Matrix.SetCell(c.Request.Context(), name, weekday, *req.Enabled); err != nil {
		h.respondScheduleError(c, err)
		return
	}
	h.respondGrid(c, SuccessCodeScheduleUpdated)
}

func (h *ScheduleHandler) handleRow(c *gin.Context) {
	name, err := prayer.ParseCanonical(c.Param("prayer"))
	if err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeUnknownPrayer, err)
		return
	}
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err)
		return
	}

	if err := h.Matrix.SetRow(c.Request.Context(), name, *req.Enabled); err != nil {
		h.respondScheduleError(c, err)
		return
	}
	h.respondGrid(c, SuccessCodeScheduleUpdated)
}

func (h *ScheduleHandler) handleColumn(c *gin.Context) {
	weekday, err := weekdayParam(c)
	if err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidWeekday, err)
		return
	}
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err)
		return
	}

	if err := h.Matrix.SetColumn(c.Request.Context(), weekday, *req.Enabled); err != nil {
		h.respondScheduleError(c, err)
		return
	}
	h.respondGrid(c, SuccessCodeScheduleUpdated)
}

func (h *ScheduleHandler) handleAll(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err)
		return
	}

	if err := h.Matrix.SetAll(c.Request.Context(), *req.Enabled); err != nil {
		h.respondScheduleError(c, err)
		return
	}
	h.respondGrid(c, SuccessCodeScheduleUpdated)
}

func (h *ScheduleHandler) handleGetNextMute(c *gin.Context) {
	state, err := h.Gate.OneShotMute(c.Request.Context())
	if err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *ScheduleHandler) handleSetNextMute(c *gin.Context) {
	var req NextMuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.Gate.SetOneShotMute(ctx, *req.Skip); err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedSaveMute, err)
		return
	}
	state, err := h.Gate.OneShotMute(ctx)
	if err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
		return
	}
	h.logger.Info().Bool("skip", *req.Skip).Msg("One-shot mute updated")
	h.RespondSuccess(c, SuccessCodeMuteUpdated, state)
}

func (h *ScheduleHandler) handleWeekdayMutes(c *gin.Context) {
	mutes, err := h.Matrix.WeekdayMutes(c.Request.Context())
	if err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
		return
	}
	c.JSON(http.StatusOK, mutes)
}

func (h *ScheduleHandler) handleSetWeekdayMute(c *gin.Context) {
	weekday, err := weekdayParam(c)
	if err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidWeekday, err)
		return
	}
	var req WeekdayMuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err)
		return
	}

	if err := h.Matrix.SetWeekdayMute(c.Request.Context(), weekday, *req.Muted); err != nil {
		if errors.Is(err, database.ErrInvalidWeekday) {
			h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidWeekday, err)
			return
		}
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedSaveMute, err)
		return
	}
	h.respondGrid(c, SuccessCodeMuteUpdated)
}

// respondGrid answers a write with the matrix as stored after it
func (h *ScheduleHandler) respondGrid(c *gin.Context, code string) {
	grid, err := h.Matrix.Grid(c.Request.Context())
	if err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
		return
	}
	h.RespondSuccess(c, code, grid)
}

func (h *ScheduleHandler) respondScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrInvalidWeekday):
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidWeekday, err)
	case errors.Is(err, database.ErrUnknownPrayer):
		h.RespondError(c, http.StatusBadRequest, ErrCodeUnknownPrayer, err)
	default:
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedSaveSchedule, err)
	}
}

func weekdayParam(c *gin.Context) (constants.Weekday, error) {
	raw := c.Param("weekday")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid weekday %q: %w", raw, err)
	}
	return constants.ParseWeekday(i)
}
