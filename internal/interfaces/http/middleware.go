package http

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

const (
	// HeaderUserID carries the acting user's id
	HeaderUserID = "X-User-ID"
	// HeaderWebhookSecret authenticates OCR callbacks
	HeaderWebhookSecret = "X-Webhook-Secret"

	sessionKey = "session"
)

var (
	uploaderRoles = []string{entity.RoleStaff}
	deciderRoles  = []string{entity.RoleManager, entity.RoleOwner}
	historyRoles  = []string{entity.RoleAccountant, entity.RoleManager, entity.RoleOwner}
)

// SessionMiddleware resolves the X-User-ID header against the users table.
// Handlers read the result with sessionFrom.
func SessionMiddleware(users port.UserRepository, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			abort(c, http.StatusUnauthorized, "missing "+HeaderUserID+" header")
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			logger.Error("Failed to resolve session", "user_id", userID, "error", err)
			abort(c, http.StatusInternalServerError, "failed to resolve user")
			return
		}
		if user == nil {
			abort(c, http.StatusUnauthorized, "unknown user")
			return
		}

		c.Set(sessionKey, entity.NewSession(user))
		c.Next()
	}
}

// RequireRoles rejects sessions whose role is not listed
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "no session")
			return
		}
		for _, r := range roles {
			if session.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "role "+session.Role+" may not perform this action")
	}
}

func sessionFrom(c *gin.Context) (entity.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return entity.Session{}, false
	}
	session, ok := v.(entity.Session)
	return session, ok
}

func callbackAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(HeaderWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			abort(c, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
		c.Next()
	}
}

// RateLimitConfig holds configuration for the rate limiter middleware
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet keeps one token bucket per client IP and drops idle ones
type limiterSet struct {
	cfg       RateLimitConfig
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

const (
	sweepInterval = 5 * time.Minute
	idleTimeout   = 10 * time.Minute
)

func (s *limiterSet) get(ip string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > sweepInterval {
		for key, cl := range s.clients {
			if now.Sub(cl.lastSeen) > idleTimeout {
				delete(s.clients, key)
			}
		}
		s.lastSweep = now
	}

	cl, ok := s.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst)}
		s.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// RateLimiter enforces a per-client token bucket and answers 429 with
// Retry-After once it is exhausted.
func RateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	set := &limiterSet{cfg: cfg, clients: make(map[string]*clientLimiter), lastSweep: time.Now()}

	return func(c *gin.Context) {
		limiter := set.get(c.ClientIP(), time.Now())

		reservation := limiter.Reserve()
		if !reservation.OK() {
			abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: msg})
}
