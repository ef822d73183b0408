package mw

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache holds cached GET responses of one process. A flush from
// Invalidate is not seen by other processes, so deployments running several
// API processes should leave caching off.
type ResponseCache struct {
	mu    sync.Mutex
	gen   uint64
	store *cache.Cache
	ttl   time.Duration
}

// NewResponseCache creates a response cache. A ttl of zero or less disables
// caching.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: cache.New(ttl, 2*ttl+time.Minute), ttl: ttl}
}

func (rc *ResponseCache) enabled() bool {
	return rc != nil && rc.ttl > 0
}

func (rc *ResponseCache) generation() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.gen
}

// put stores resp unless the cache was flushed after gen was read.
func (rc *ResponseCache) put(key string, gen uint64, resp cachedResponse) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if gen != rc.gen {
		return false
	}
	rc.store.Set(key, resp, rc.ttl)
	return true
}

func (rc *ResponseCache) flush() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.gen++
	rc.store.Flush()
}

// Cache is a middleware for in-memory caching of GET requests. Entries are
// keyed by request URI and the Authorization header. A response is only
// stored if no mutation finished while it was being built.
func Cache(rc *ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || !rc.enabled() {
			c.Next()
			return
		}

		key := c.Request.RequestURI + "|" + c.GetHeader("Authorization")
		if resp, found := rc.store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		gen := rc.generation()
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses
		if blw.Status() >= 200 && blw.Status() < 300 {
			rc.put(key, gen, cachedResponse{
				status:  blw.Status(),
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			})
		}
	}
}

// Invalidate flushes the response cache after every successful mutation.
func Invalidate(rc *ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if rc.enabled() && c.Writer.Status() >= 200 && c.Writer.Status() < 300 {
			rc.flush()
		}
	}
}
