package middleware

import (
	"net/http"

	"github.com/JrMarcco/jsignage/internal/api/web/httperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler 兜底写出未被处理器写出的错误响应
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		for i := len(c.Errors) - 1; i >= 0; i-- {
			err := c.Errors[i]
			if !err.IsType(gin.ErrorTypePublic) {
				continue
			}
			if resp, ok := err.Meta.(httperr.Response); ok {
				c.JSON(resp.Status, resp)
				return
			}
		}
		if len(c.Errors) > 0 {
			resp := httperr.FromError(c.Errors.Last().Err)
			c.JSON(resp.Status, resp)
		}
	}
}

func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(
					"[jsignage] recovered from panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
				)

				resp := httperr.Response{Status: http.StatusInternalServerError}
				resp.Error.Message = "internal server error"
				resp.Error.Reason = httperr.ReasonInternal
				c.AbortWithStatusJSON(resp.Status, resp)
			}
		}()
		c.Next()
	}
}
