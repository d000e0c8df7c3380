package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/config"
)

// captureWriter tees the response to a buffer while forwarding it.  Once
// more than limit bytes have been written the capture is marked overflowed.
type captureWriter struct {
	http.ResponseWriter
	status     int
	buf        bytes.Buffer
	limit      int
	overflowed bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflowed {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.overflowed = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// ResponseCache caches successful reads in Redis.  Every key embeds a
// generation counter which any successful write through the same cache
// bumps, so a read following a write never sees a response from before it.
type ResponseCache struct {
	cfg     config.CacheConfig
	rdb     *redis.Client
	log     *zap.Logger
	methods map[string]bool
}

// NewResponseCache returns a cache over rdb.  With a nil rdb or caching
// disabled its middleware passes every request through.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *ResponseCache {
	return &ResponseCache{cfg: cfg, rdb: rdb, log: log, methods: cfg.MethodSet()}
}

func (rc *ResponseCache) genKey() string { return rc.cfg.Prefix + ":gen" }

// Middleware serves cached reads and invalidates on writes.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.cfg.Enabled || rc.rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.methods[c.Request().Method] {
				err := next(c)
				if err == nil && isSuccess(c.Response().Status) {
					rc.Invalidate(c.Request().Context())
				}
				return err
			}
			return rc.serve(c, next)
		}
	}
}

// Invalidate retires every cached entry by moving to a new generation.
func (rc *ResponseCache) Invalidate(ctx context.Context) {
	if err := rc.rdb.Incr(context.WithoutCancel(ctx), rc.genKey()).Err(); err != nil {
		rc.log.Warn("cache invalidate failed", zap.Error(err))
	}
}

func (rc *ResponseCache) serve(c echo.Context, next echo.HandlerFunc) error {
	ctx := c.Request().Context()
	gen, err := rc.rdb.Get(ctx, rc.genKey()).Int64()
	if err != nil && err != redis.Nil {
		rc.log.Warn("cache generation lookup failed", zap.Error(err))
		return next(c)
	}
	key := cacheKey(rc.cfg.Prefix, gen, c)

	if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
		if status, hdr, body, ok := decodePayload(bs); ok {
			for k, vals := range hdr {
				if strings.EqualFold(k, echo.HeaderContentLength) {
					continue
				}
				for _, v := range vals {
					c.Response().Header().Add(k, v)
				}
			}
			c.Response().Header().Set("X-Cache", "HIT")
			c.Response().WriteHeader(status)
			_, err := c.Response().Write(body)
			return err
		}
	}

	cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.cfg.MaxBodyBytes}
	c.Response().Writer = cw
	c.Response().Header().Set("X-Cache", "MISS")
	if err := next(c); err != nil {
		return err
	}
	if cw.status != http.StatusOK || cw.overflowed {
		return nil
	}

	hdr := c.Response().Header().Clone()
	hdr.Del("X-Cache")
	payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
	if err != nil {
		return nil
	}
	if err := rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
		rc.log.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }

// cacheKey hashes everything that can change a read's response: the
// generation, the caller, the matched route, the concrete path and the
// query string.
func cacheKey(prefix string, gen int64, c echo.Context) string {
	r := c.Request()
	tail := strings.Join([]string{
		fmt.Sprint(gen), userKey(c), CurrentRole(c), r.Method, c.Path(), r.URL.Path, r.URL.RawQuery,
	}, "\x00")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
