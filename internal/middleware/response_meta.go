package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey  = "response_meta"
	cacheHitKey      = "cache_hit"
	processingTimeMS = "processing_time_ms"
)

// WithResponseMeta gives every request a meta map that handlers fill and response.JSON emits.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Set(processingTimeMS, time.Now())
		c.Next()
	}
}

// SetMeta records one response meta entry.
func SetMeta(c *gin.Context, key string, value interface{}) {
	ensureMeta(c)[key] = value
}

// SetCacheHit records whether the payload came from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, cacheHitKey, hit)
}

// ExtractMeta returns the meta collected so far, stamped with the elapsed time. It returns nil when nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, ok := raw.(map[string]interface{})
	if !ok || len(meta) == 0 {
		return nil
	}
	if raw, ok := c.Get(processingTimeMS); ok {
		if started, ok := raw.(time.Time); ok {
			meta[processingTimeMS] = time.Since(started).Milliseconds()
		}
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if raw, exists := c.Get(responseMetaKey); exists {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	if _, started := c.Get(processingTimeMS); !started {
		c.Set(processingTimeMS, time.Now())
	}
	return meta
}
