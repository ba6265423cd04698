package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/artem-chat/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger кладёт в контекст запроса логгер с request_id
// и пишет строку лога по завершении запроса. Для /ws запрос
// завершается вместе с соединением.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLog := log.WithStr("request_id", requestID)
		c.Request = c.Request.WithContext(reqLog.WithContext(c.Request.Context()))

		c.Next()

		reqLog.Info().
			Str("uri", c.Request.RequestURI).
			Str("method", c.Request.Method).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Int("size", c.Writer.Size()).
			Str("remote", c.ClientIP()).
			Send()
	}
}

// Recovery отвечает 500 и логирует панику обработчика.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().
			Str("request_id", c.Writer.Header().Get(RequestIDHeader)).
			Interface("panic", recovered).
			Str("uri", c.Request.RequestURI).
			Msg("handler panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
