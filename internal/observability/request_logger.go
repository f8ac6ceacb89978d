package observability

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	// RequestIDHeader carries the per-request ULID.
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// PrincipalIDFunc extracts the authenticated caller id from the request, if any.
type PrincipalIDFunc func(c *fiber.Ctx) (int64, bool)

// RequestLogger assigns a request id, logs one line per request and feeds metrics.
func RequestLogger(logger *zap.Logger, metrics *Metrics, principalID PrincipalIDFunc) fiber.Handler {
	ids := newIDSource(rand.Reader)
	return func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get(RequestIDHeader)
		if reqID == "" {
			reqID = ids.next(start)
		}
		c.Locals(requestIDKey, reqID)
		c.Set(RequestIDHeader, reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		latency := time.Since(start)
		route := c.Route().Path
		metrics.RecordRequest(route, c.Method(), status, latency)

		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if principalID != nil {
			if id, ok := principalID(c); ok {
				fields = append(fields, zap.Int64("user_id", id))
			}
		}
		logger.Info("request", fields...)
		return err
	}
}

// RequestID returns the id assigned by RequestLogger.
func RequestID(c *fiber.Ctx) string {
	if v, ok := c.Locals(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// idSource serializes access to the monotonic entropy, which is not goroutine safe.
type idSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newIDSource(r io.Reader) *idSource {
	return &idSource{entropy: ulid.Monotonic(r, 0)}
}

func (s *idSource) next(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}
