package handlers

import (
	"net/http"

	"github.com/belphemur/athan-scheduler/internal/config"
	"github.com/belphemur/athan-scheduler/internal/constants"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SettingsHandler manages the audio settings
type SettingsHandler struct {
	*BaseHandler
	logger zerolog.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(baseHandler *BaseHandler) *SettingsHandler {
	return &SettingsHandler{
		BaseHandler: baseHandler,
		logger:      baseHandler.logger.With().Str("handler", "settings").Logger(),
	}
}

// RegisterRoutes registers settings related routes
func (h *SettingsHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/settings", h.handleGetSettings)
	r.PUT("/api/settings", h.handleUpdateSettings)
}

// SettingsResponse is the body of GET /api/settings
type SettingsResponse struct {
	Settings      config.AudioSettings     `json:"settings"`
	OutputTargets []constants.OutputTarget `json:"output_targets"`
}

func (h *SettingsHandler) handleGetSettings(c *gin.Context) {
	settings, err := h.Settings.GetAudioSettings(c.Request.Context())
	if err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
		return
	}
	c.JSON(http.StatusOK, SettingsResponse{
		Settings:      settings,
		OutputTargets: constants.GetAllOutputTargets(),
	})
}

// handleUpdateSettings replaces the audio settings.
// The new values are only reported once the store has committed them.
func (h *SettingsHandler) handleUpdateSettings(c *gin.Context) {
	var settings config.AudioSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err)
		return
	}
	if target, err := constants.ParseOutputTarget(string(settings.OutputTarget)); err == nil {
		settings.OutputTarget = target
	}
	if err := settings.Validate(); err != nil {
		h.RespondError(c, http.StatusBadRequest, ErrCodeInvalidSettings, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.Settings.SaveAudioSettings(ctx, settings); err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedSaveSettings, err)
		return
	}
	saved, err := h.Settings.GetAudioSettings(ctx)
	if err != nil {
		h.RespondError(c, http.StatusInternalServerError, ErrCodeFailedLoad, err)
		return
	}

	h.logger.Info().
		Str("output_target", saved.OutputTarget.String()).
		Int("volume", saved.Volume).
		Int("fajr_volume", saved.FajrVolume).
		Bool("fajr_volume_sync", saved.FajrVolumeSync).
		Msg("Audio settings updated")
	h.RespondSuccess(c, SuccessCodeSettingsUpdated, saved)
}
