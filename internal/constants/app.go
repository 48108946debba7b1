// Package constants provides shared constants for the athan scheduler
package constants

// AppName is the name reported by the health endpoint and in startup logs
const AppName = "Athan Scheduler"

// DateLayout is the layout of calendar dates everywhere in the system (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// TimeLayout is the layout of prayer times of day (HH:MM, 24h)
const TimeLayout = "15:04"
