package handlers

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter builds the gin engine with every API route.
// An empty origins list, or one containing "*", allows any origin.
func NewRouter(base *BaseHandler, origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(base.logger.With().Str("handler", "http").Logger()))

	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS", "HEAD"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "If-None-Match"},
		ExposeHeaders: []string{
			"Content-Length",
			"ETag",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	} else {
		corsConfig.AllowOrigins = origins
	}
	r.Use(cors.New(corsConfig))

	NewStatusHandler(base).RegisterRoutes(r)
	NewScheduleHandler(base).RegisterRoutes(r)
	NewSettingsHandler(base).RegisterRoutes(r)
	NewCalendarHandler(base).RegisterRoutes(r)
	NewAudioHandler(base).RegisterRoutes(r)
	return r
}

// requestLogger logs every request once it completes. Status polls are logged at debug level.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Info()
		switch {
		case c.Writer.Status() >= 500:
			event = logger.Error()
		case c.Request.Method == "GET":
			event = logger.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}
