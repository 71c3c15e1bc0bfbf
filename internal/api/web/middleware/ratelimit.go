package middleware

import (
	"time"

	"github.com/JrMarcco/jsignage/internal/api/web/httperr"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/gin-gonic/gin"
	gcache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	defaultRateBurst   = 1
	defaultIdleExpires = 10 * time.Minute
)

type RateLimitConfig struct {
	// Rate 每秒允许的请求数，<= 0 表示不限流
	Rate        float64       `mapstructure:"rate"`
	Burst       int           `mapstructure:"burst"`
	IdleExpires time.Duration `mapstructure:"idle_expires"`
}

// RateLimiter 按客户端 ip 限流，每个 ip 一个令牌桶，空闲超过 IdleExpires 后回收
type RateLimiter struct {
	limiters *gcache.Cache
	limit    rate.Limit
	burst    int
	expires  time.Duration
}

func (l *RateLimiter) Build() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit <= 0 {
			c.Next()
			return
		}

		if !l.limiterOf(c.ClientIP()).Allow() {
			httperr.AbortWithError(c, errs.ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) limiterOf(key string) *rate.Limiter {
	if val, ok := l.limiters.Get(key); ok {
		// 续期
		l.limiters.Set(key, val, l.expires)
		return val.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(l.limit, l.burst)
	if err := l.limiters.Add(key, limiter, l.expires); err != nil {
		// 并发创建时以先写入的为准
		if val, ok := l.limiters.Get(key); ok {
			return val.(*rate.Limiter)
		}
	}
	return limiter
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultRateBurst
	}
	expires := cfg.IdleExpires
	if expires <= 0 {
		expires = defaultIdleExpires
	}

	return &RateLimiter{
		limiters: gcache.New(expires, 2*expires),
		limit:    rate.Limit(cfg.Rate),
		burst:    burst,
		expires:  expires,
	}
}
