package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	statusWarnThreshold  = 400
	statusErrorThreshold = 500
	healthPath           = "/"
)

// ZerologLogger is a Gin middleware that logs requests using zerolog.
// Keep-alive pings on the health path only show up at debug level.
func ZerologLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		evt := requestEvent(path, status)
		if raw != "" {
			path = path + "?" + raw
		}

		evt.
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", path).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("http request completed")
	}
}

func requestEvent(path string, status int) *zerolog.Event {
	switch {
	case status >= statusErrorThreshold:
		return log.Error()
	case status >= statusWarnThreshold:
		return log.Warn()
	case path == healthPath:
		return log.Debug()
	default:
		return log.Info()
	}
}

// ZerologRecovery turns a handler panic into a 500 and logs it.
func ZerologRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("handler panicked")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
