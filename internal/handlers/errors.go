package handlers

// Error Codes
const (
	ErrCodeInvalidRequest       = "invalid_request"
	ErrCodeInvalidWeekday       = "invalid_weekday"
	ErrCodeUnknownPrayer        = "unknown_prayer"
	ErrCodeInvalidMonth         = "invalid_month"
	ErrCodeInvalidSettings      = "invalid_settings"
	ErrCodeFailedLoad           = "failed_load"
	ErrCodeFailedSaveSchedule   = "failed_save_schedule"
	ErrCodeFailedSaveMute       = "failed_save_mute"
	ErrCodeFailedSaveSettings   = "failed_save_settings"
	ErrCodeCalendarRefresh      = "calendar_refresh_failed"
	ErrCodeCalendarUnavailable  = "calendar_unavailable"
	ErrCodeMissingAudioAsset    = "missing_audio_asset"
	ErrCodePlaybackFailed       = "playback_failed"
	ErrCodeSchedulerUnavailable = "scheduler_unavailable"
	ErrCodeUnknown              = "unknown_error"
)

// Success Codes
const (
	SuccessCodeScheduleUpdated   = "schedule_updated"
	SuccessCodeMuteUpdated       = "mute_updated"
	SuccessCodeSettingsUpdated   = "settings_updated"
	SuccessCodeCalendarRefreshed = "calendar_refreshed"
	SuccessCodePlaybackStarted   = "playback_started"
	SuccessCodePlaybackStopped   = "playback_stopped"
)

// ErrorMessages maps error codes to user-friendly messages
var ErrorMessages = map[string]string{
	ErrCodeInvalidRequest:       "Invalid request body.",
	ErrCodeInvalidWeekday:       "Invalid weekday. Use 0 for Monday up to 6 for Sunday.",
	ErrCodeUnknownPrayer:        "Unknown prayer. Use Fajr, Dhuhr, Asr, Maghrib or Isha.",
	ErrCodeInvalidMonth:         "Invalid month. Use the YYYY-MM format.",
	ErrCodeInvalidSettings:      "Invalid audio settings.",
	ErrCodeFailedLoad:           "Failed to load data. Please try again.",
	ErrCodeFailedSaveSchedule:   "Failed to save the prayer schedule.",
	ErrCodeFailedSaveMute:       "Failed to save the mute.",
	ErrCodeFailedSaveSettings:   "Failed to save audio settings.",
	ErrCodeCalendarRefresh:      "Failed to refresh prayer times. The current calendar is kept.",
	ErrCodeCalendarUnavailable:  "Prayer times are not available yet.",
	ErrCodeMissingAudioAsset:    "The athan audio file could not be found.",
	ErrCodePlaybackFailed:       "Failed to play the athan.",
	ErrCodeSchedulerUnavailable: "The trigger scheduler is not running.",
	ErrCodeUnknown:              "An unknown error occurred.",
}

// SuccessMessages maps success codes to user-friendly messages
var SuccessMessages = map[string]string{
	SuccessCodeScheduleUpdated:   "Prayer schedule updated.",
	SuccessCodeMuteUpdated:       "Mute updated.",
	SuccessCodeSettingsUpdated:   "Audio settings updated.",
	SuccessCodeCalendarRefreshed: "Prayer times refreshed.",
	SuccessCodePlaybackStarted:   "Test playback started.",
	SuccessCodePlaybackStopped:   "Playback stopped.",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code string) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return ErrorMessages[ErrCodeUnknown]
}

// GetSuccessMessage returns the message for a given success code
func GetSuccessMessage(code string) string {
	if msg, ok := SuccessMessages[code]; ok {
		return msg
	}
	return ""
}
