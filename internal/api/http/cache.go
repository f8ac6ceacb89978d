package http

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/car-marketplace/internal/config"
)

const cacheHeader = "X-Cache"

// ResponseCache stores anonymous GET responses in Redis. Keys embed a
// generation counter so a single INCR invalidates every cached page.
type ResponseCache struct {
	cfg    config.CacheConfig
	rdb    *redis.Client
	logger *zap.Logger
}

// NewResponseCache builds the cache; a nil client disables it.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, logger *zap.Logger) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, logger: logger}
}

func (rc *ResponseCache) enabled() bool {
	return rc != nil && rc.cfg.Enabled && rc.rdb != nil
}

// Handler serves cached responses. Requests carrying credentials bypass the
// cache because listing visibility depends on the caller.
func (rc *ResponseCache) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rc.enabled() || c.Method() != fiber.MethodGet || c.Get(fiber.HeaderAuthorization) != "" {
			return c.Next()
		}

		ctx := c.UserContext()
		key, err := rc.key(ctx, c.Path(), string(c.Request().URI().QueryString()))
		if err != nil {
			rc.logger.Warn("response cache unavailable", zap.Error(err))
			return c.Next()
		}

		if raw, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
			if status, contentType, body, ok := decodeCached(raw); ok {
				c.Set(cacheHeader, "HIT")
				c.Set(fiber.HeaderContentType, contentType)
				return c.Status(status).Send(body)
			}
		}

		c.Set(cacheHeader, "MISS")
		if err := c.Next(); err != nil {
			return err
		}

		resp := c.Response()
		body := resp.Body()
		if resp.StatusCode() != fiber.StatusOK || (rc.cfg.MaxBodyBytes > 0 && len(body) > rc.cfg.MaxBodyBytes) {
			return nil
		}
		payload := encodeCached(resp.StatusCode(), string(resp.Header.ContentType()), body)
		if err := rc.rdb.SetEx(context.Background(), key, payload, rc.cfg.TTL).Err(); err != nil {
			rc.logger.Warn("response cache store failed", zap.Error(err))
		}
		return nil
	}
}

// Invalidate bumps the generation after a successful mutating request.
func (rc *ResponseCache) Invalidate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if !rc.enabled() || err != nil || c.Method() == fiber.MethodGet {
			return err
		}
		if status := c.Response().StatusCode(); status >= 200 && status < 300 {
			if incrErr := rc.rdb.Incr(context.Background(), rc.generationKey()).Err(); incrErr != nil {
				rc.logger.Warn("response cache invalidate failed", zap.Error(incrErr))
			}
		}
		return nil
	}
}

func (rc *ResponseCache) generationKey() string {
	return rc.cfg.Prefix + ":gen"
}

func (rc *ResponseCache) key(ctx context.Context, path, query string) (string, error) {
	gen, err := rc.rdb.Get(ctx, rc.generationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return cacheKey(rc.cfg.Prefix, gen, path, query), nil
}

func cacheKey(prefix string, gen int64, path, query string) string {
	sum := sha1.Sum([]byte(path + "?" + query))
	return fmt.Sprintf("%s:%d:%x", prefix, gen, sum[:])
}

// encodeCached packs [4 bytes status][2 bytes content-type length][content-type][body].
func encodeCached(status int, contentType string, body []byte) []byte {
	out := make([]byte, 6+len(contentType)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint16(out[4:6], uint16(len(contentType)))
	copy(out[6:], contentType)
	copy(out[6+len(contentType):], body)
	return out
}

func decodeCached(raw []byte) (status int, contentType string, body []byte, ok bool) {
	if len(raw) < 6 {
		return 0, "", nil, false
	}
	status = int(binary.BigEndian.Uint32(raw[0:4]))
	n := int(binary.BigEndian.Uint16(raw[4:6]))
	if 6+n > len(raw) {
		return 0, "", nil, false
	}
	return status, string(raw[6 : 6+n]), raw[6+n:], true
}
