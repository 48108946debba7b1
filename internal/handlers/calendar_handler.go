package handlers

import (
	"net/http"
	"time"

	"github.com/belphemur/athan-scheduler/internal/calendar"
	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/viewhelpers"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// recentRefreshes is how many refresh attempts the status endpoint lists
const recentRefreshes = 10

// CalendarHandler serves the prayer calendar and its refresh controls
type CalendarHandler struct {
	*BaseHandler
	logger zerolog.Logger
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(baseHandler *BaseHandler) *CalendarHandler {
	return &CalendarHandler{
		BaseHandler: baseHandler,
		logger:      baseHandler.logger.With().Str("handler", "calendar").Logger(),
	}
}

// RegisterRoutes registers calendar related routes
func (h *CalendarHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/calendar")
	api.GET("", h.handleMonth)
	api.POST("/refresh", h.handleRefresh)
	api.GET("/status", h.handleStatus)
}

// MonthResponse is the body of GET /api/calendar
type MonthResponse struct {
	Month string                       `json:"month"`
	Start string                       `json:"start"`
	End   string                       `json:"end"`
	Weeks [][]viewhelpers.CalendarDay `json:"weeks"`
}

// CalendarStatusResponse is the body of GET /api/calendar/status
type CalendarStatusResponse struct {
	Status    calendar.Status          `json:"status"`
	Refreshes []database.RefreshRecord `json:"refreshes"`
}

// handleMonth renders the full weeks around ?month=YYYY-MM, the current month by default
func (h *CalendarHandler) handleMonth(c *gin.Context) {
	ref := h.Now()
	if month := c.Query("month"); month != "" {
		parsed, err := time.ParseInLocation("2006-01", month, h.Location)
		if err != nil {
			h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidMonth, err)
			return
		}
		ref = parsed.AddDate(0, 0, 14)
	}

	ctx := c.Request.Context()
	start, end := viewhelpers.CalculateCalendarRange(ref)
	events, err := h.Calendar.EventsOn(ctx, viewhelpers.DatesBetween(start, end)...)
	if err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
		return
	}
	grid, err := h.Matrix.Grid(ctx)
	if err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
		return
	}

	monthName, weeks := viewhelpers.StructurePrayersForTemplate(start, end, events, grid)
	h.logger.Debug().Str("month", monthName).Int("events", len(events)).Msg("Calendar month built")
	h.RespondWithETag(c, MonthResponse{
		Month: monthName,
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
		Weeks: weeks,
	})
}

// handleRefresh forces a fetch. A failure keeps the stored calendar.
func (h *CalendarHandler) handleRefresh(c *gin.Context) {
	if err := h.Calendar.Refresh(c.Request.Context()); err != nil {
		h.RespondError(c, http.StatusBadGateway, ErrCodeCalendarRefresh, err)
		return
	}
	h.logger.Info().Int64("version", h.Calendar.Version()).Msg("Calendar refreshed on request")
	h.RespondSuccess(c, SuccessCodeCalendarRefreshed, h.Calendar.Status())
}

func (h *CalendarHandler) handleStatus(c *gin.Context) {
	resp := CalendarStatusResponse{
		Status:    h.Calendar.Status(),
		Refreshes: []database.RefreshRecord{},
	}
	if h.Refreshes != nil {
		records, err := h.Refreshes.Recent(c.Request.Context(), recentRefreshes)
		if err != nil {
			h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
			return
		}
		if records != nil {
			resp.Refreshes = records
		}
	}
	c.JSON(http.StatusOK, resp)
}
