package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/vhvplatform/go-billing-reminder/internal/metrics"
	"golang.org/x/time/rate"
)

// TenantRateLimiter manages rate limiters per tenant
type TenantRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewTenantRateLimiter creates a new tenant rate limiter
func NewTenantRateLimiter(rps float64, burst int) *TenantRateLimiter {
	return &TenantRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// GetLimiter returns the rate limiter for a specific tenant
func (rl *TenantRateLimiter) GetLimiter(tenantID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[tenantID]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		limiter, exists = rl.limiters[tenantID]
		if !exists {
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.limiters[tenantID] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// RateLimitMiddleware creates a rate limiting middleware keyed by the
// tenant_id found in the query string, form data or JSON body.
func RateLimitMiddleware(rl *TenantRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Query("tenant_id")

		if tenantID == "" {
			tenantID = c.PostForm("tenant_id")
		}

		if tenantID == "" {
			var req struct {
				TenantID string `json:"tenant_id"`
			}
			// ShouldBindBodyWith keeps the body readable for the handler
			if err := c.ShouldBindBodyWith(&req, binding.JSON); err == nil {
				tenantID = req.TenantID
			}
		}

		// Requests without a tenant fail validation in the handler.
		if tenantID == "" {
			c.Next()
			return
		}

		limiter := rl.GetLimiter(tenantID)

		if !limiter.Allow() {
			metrics.RateLimitExceeded.WithLabelValues(tenantID).Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
