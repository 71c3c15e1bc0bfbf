package middleware

import (
	"github.com/JrMarcco/jsignage/internal/api/web/httperr"
	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/pkg/authn"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ctxSubmitterKey = "submitter"

type AuthBuilder struct {
	verifier *authn.Verifier
	logger   *zap.Logger
}

// RequireAuth 校验 Authorization 请求头，投稿人信息写入 gin.Context 与 request context
func (b *AuthBuilder) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		submitter, err := b.verifier.VerifyHeader(c.GetHeader("Authorization"))
		if err != nil {
			b.logger.Debug(
				"[jsignage] failed to verify access token",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			httperr.AbortWithError(c, err)
			return
		}

		c.Set(ctxSubmitterKey, submitter)
		c.Request = c.Request.WithContext(authn.WithSubmitter(c.Request.Context(), submitter))
		c.Next()
	}
}

// RequireAdmin 需要放在 RequireAuth 之后
func (b *AuthBuilder) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		submitter, ok := GetSubmitter(c)
		if !ok {
			httperr.AbortWithError(c, errs.ErrUnauthenticated)
			return
		}
		if !submitter.Role.IsAdmin() {
			httperr.AbortWithError(c, errs.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}

func NewAuthBuilder(verifier *authn.Verifier, logger *zap.Logger) *AuthBuilder {
	return &AuthBuilder{
		verifier: verifier,
		logger:   logger,
	}
}

func GetSubmitter(c *gin.Context) (domain.Submitter, bool) {
	val, ok := c.Get(ctxSubmitterKey)
	if !ok {
		return domain.Submitter{}, false
	}
	submitter, ok := val.(domain.Submitter)
	return submitter, ok
}
