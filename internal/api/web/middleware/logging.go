package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	HeaderRequestId      = "X-Request-Id"
	HeaderIdempotencyKey = "Idempotency-Key"

	ctxRequestIdKey = "request_id"
)

// Logging 请求日志，4xx 记 warn，5xx 记 error
func Logging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestId := c.GetHeader(HeaderRequestId)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		c.Set(ctxRequestIdKey, requestId)
		c.Header(HeaderRequestId, requestId)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestId),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
			fields = append(fields, zap.String("idempotency_key", key))
		}
		if submitter, ok := GetSubmitter(c); ok {
			fields = append(fields, zap.String("submitter_id", submitter.Id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		}
		logger.Log(level, "[jsignage] http request", fields...)
	}
}

// GetRequestId 返回当前请求 id
func GetRequestId(c *gin.Context) string {
	return c.GetString(ctxRequestIdKey)
}
