package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/belphemur/athan-scheduler/internal/calendar"
	"github.com/belphemur/athan-scheduler/internal/clock"
	"github.com/belphemur/athan-scheduler/internal/database"
	"github.com/belphemur/athan-scheduler/internal/gate"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/schedule"
	"github.com/belphemur/athan-scheduler/internal/scheduler"
	"github.com/belphemur/athan-scheduler/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// BaseHandler contains the services shared by every handler
type BaseHandler struct {
	Calendar  calendar.Calendar
	Matrix    *schedule.Matrix
	Gate      *gate.Gate
	Status    *status.Resolver
	Scheduler *scheduler.Scheduler
	Settings  *database.SettingsStore
	Playback  *database.PlaybackLog
	Refreshes *database.RefreshLog
	Clock     clock.Clock
	Location  *time.Location
	logger    zerolog.Logger
}

// Services groups the dependencies of NewBaseHandler
type Services struct {
	Calendar  calendar.Calendar
	Matrix    *schedule.Matrix
	Gate      *gate.Gate
	Status    *status.Resolver
	Scheduler *scheduler.Scheduler
	Settings  *database.SettingsStore
	Playback  *database.PlaybackLog
	Refreshes *database.RefreshLog
	Clock     clock.Clock
	Location  *time.Location
}

// NewBaseHandler creates a common base handler with shared components
func NewBaseHandler(s Services) (*BaseHandler, error) {
	if s.Calendar == nil || s.Matrix == nil || s.Gate == nil || s.Status == nil || s.Settings == nil {
		return nil, errors.New("handlers need the calendar, the matrix, the gate, the status resolver and the settings store")
	}
	if s.Clock == nil {
		s.Clock = clock.New()
	}
	if s.Location == nil {
		s.Location = time.Local
	}
	return &BaseHandler{
		Calendar:  s.Calendar,
		Matrix:    s.Matrix,
		Gate:      s.Gate,
		Status:    s.Status,
		Scheduler: s.Scheduler,
		Settings:  s.Settings,
		Playback:  s.Playback,
		Refreshes: s.Refreshes,
		Clock:     s.Clock,
		Location:  s.Location,
		logger:    logging.GetLogger("base-handler"),
	}, nil
}

// Now returns the current wall time in the configured location
func (h *BaseHandler) Now() time.Time {
	return h.Clock.Now().In(h.Location)
}

// ErrorBody is the JSON payload of every failed request
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// RespondError writes an error code with its user-facing message
func (h *BaseHandler) RespondError(c *gin.Context, status int, code string, err error) {
	body := ErrorBody{Code: code, Message: GetErrorMessage(code)}
	if err != nil {
		body.Detail = err.Error()
	}
	event := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).Str("path", c.FullPath()).Str("code", code).Int("status", status).Msg("Request failed")
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// RespondSuccess writes a success code and its message along with the data
func (h *BaseHandler) RespondSuccess(c *gin.Context, code string, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    code,
		"message": GetSuccessMessage(code),
		"data":    data,
	})
}

// RespondWithETag writes the payload with a content ETag.
// A request whose If-None-Match carries the current ETag gets 304 Not Modified.
func (h *BaseHandler) RespondWithETag(c *gin.Context, payload any) {
	h.RespondWithETagOf(c, payload, payload)
}

// RespondWithETagOf writes the payload with an ETag computed from validator only,
// for payloads carrying fields that change on every request.
func (h *BaseHandler) RespondWithETagOf(c *gin.Context, validator, payload any) {
	tagged, err := json.Marshal(validator)
	if err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeUnknown, err)
		return
	}
	hash := sha256.Sum256(tagged)
	etag := fmt.Sprintf("\"%s\"", hex.EncodeToString(hash[:]))

	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	if ifNoneMatch := c.GetHeader("If-None-Match"); ifNoneMatch != "" && matchesETag(ifNoneMatch, etag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// matchesETag checks if the If-None-Match header matches etag.
// Supports multiple ETags separated by commas and the wildcard '*'.
func matchesETag(ifNoneMatch, etag string) bool {
	if strings.TrimSpace(ifNoneMatch) == "*" {
		return true
	}
	for _, candidate := range parseETags(ifNoneMatch) {
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// parseETags splits a comma separated If-None-Match header
func parseETags(header string) []string {
	var etags []string
	for _, part := range strings.Split(header, ",") {
		etag := strings.TrimSpace(part)
		if etag != "" {
			etags = append(etags, etag)
		}
	}
	return etags
}
