package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/smartrail/booking-checkout/pkg/railapi"
)

// TemplateCache caches carriage seat templates in Redis. Templates are
// static per template id, so a cache hit skips one upstream call per
// carriage activation. A nil Redis client disables the cache.
type TemplateCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewTemplateCache creates a new template cache
func NewTemplateCache(rdb *redis.Client, ttl time.Duration, logger *logrus.Logger) *TemplateCache {
	return &TemplateCache{rdb: rdb, ttl: ttl, logger: logger}
}

func templateKey(templateID int64) string {
	return fmt.Sprintf("seat-template:%d", templateID)
}

// Get returns the cached template, or nil on miss or cache error.
func (c *TemplateCache) Get(ctx context.Context, templateID int64) *railapi.TemplateResponse {
	if c == nil || c.rdb == nil {
		return nil
	}

	data, err := c.rdb.Get(ctx, templateKey(templateID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Template cache read failed")
		}
		return nil
	}

	var tpl railapi.TemplateResponse
	if err := json.Unmarshal(data, &tpl); err != nil {
		c.logger.WithError(err).Warn("Template cache entry corrupt, ignoring")
		return nil
	}
	return &tpl
}

// Set stores a template. Failures are logged, never surfaced.
func (c *TemplateCache) Set(ctx context.Context, templateID int64, tpl *railapi.TemplateResponse) {
	if c == nil || c.rdb == nil || tpl == nil {
		return
	}

	data, err := json.Marshal(tpl)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, templateKey(templateID), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Template cache write failed")
	}
}
