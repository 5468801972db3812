package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/farm-live-bidding/internal/config"
)

// bodyCapture tees the response body so a successful reply can be
// stored after it has been sent to the client.
type bodyCapture struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	limit  int
}

func (w *bodyCapture) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	if w.limit <= 0 || w.buf.Len()+len(b) <= w.limit {
		w.buf.Write(b)
	} else {
		w.buf.Reset() // over limit, do not cache a truncated body
		w.limit = -1
	}
	return w.ResponseWriter.Write(b)
}

// cacheKey hashes route+query under the configured prefix.  Bidding
// browse responses are identical for every caller, so the key carries
// no user component.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// NewRedisCache returns a middleware that serves GET bidding browse
// responses from Redis for the configured TTL.  Only 200 responses are
// cached; sizes above MaxBodyBytes are skipped.  Like the rate
// limiter, the cache fails open when Redis is down.  Live state is
// still pushed over WebSocket, so a short TTL here only delays the
// polling fallback, never the room broadcast.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			key := cacheKey(cfg, c)
			ctx := c.Request().Context()

			if body, err := rdb.Get(ctx, key).Bytes(); err == nil {
				c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
				c.Response().Header().Set("X-Cache", "HIT")
				return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, body)
			}

			cw := &bodyCapture{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status == http.StatusOK && cw.buf.Len() > 0 {
				_ = rdb.SetEx(context.Background(), key, cw.buf.Bytes(), cfg.TTL).Err()
			}
			return nil
		}
	}
}
