package providers

import (
	"github.com/samber/do/v2"

	"github.com/quillapp/quill-server/internal/config"
	"github.com/quillapp/quill-server/internal/logger"
	"github.com/quillapp/quill-server/internal/ratelimit"
	"github.com/quillapp/quill-server/internal/service"
	"github.com/quillapp/quill-server/internal/util"
)

// RateLimiterHandle wraps the keyed rate limiter with shutdown capability.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the per-user tagging rate limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	limiter := ratelimit.PerMinute(cfg.Limits.TaggingsPerMinute, cfg.Limits.TaggingsBurst)

	return &RateLimiterHandle{KeyedRateLimiter: limiter}, nil
}

// ProvideTagService provides the tag lifecycle service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	limiterHandle := do.MustInvoke[*RateLimiterHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(
		storeHandle.Store,
		indexHandle.TagIndex,
		limiterHandle.KeyedRateLimiter,
		searchService,
		util.NormalizeTagSlug,
		log.Logger,
	), nil
}

// ProvideAnalyticsService provides the tag analytics service.
func ProvideAnalyticsService(i do.Injector) (*service.AnalyticsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAnalyticsService(storeHandle.Store, log.Logger), nil
}
