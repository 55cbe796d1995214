package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/quillapp/quill-server/internal/cache"
	"github.com/quillapp/quill-server/internal/config"
	"github.com/quillapp/quill-server/internal/domain"
	"github.com/quillapp/quill-server/internal/logger"
	"github.com/quillapp/quill-server/internal/search"
	"github.com/quillapp/quill-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.TagIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve tag index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewTagIndex(search.Options{
		DataPath: filepath.Join(cfg.Data.BasePath, "search"),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{TagIndex: index}, nil
}

// ProvideResultCache provides the in-memory search result cache.
func ProvideResultCache(i do.Injector) (*cache.Memory[[]domain.SearchResult], error) {
	cfg := do.MustInvoke[*config.Config](i)
	return cache.NewMemory[[]domain.SearchResult](cfg.Search.CacheTTL), nil
}

// ProvideSearchService provides the tag search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	resultCache := do.MustInvoke[*cache.Memory[[]domain.SearchResult]](i)
	log := do.MustInvoke[*logger.Logger](i)

	searchCfg := service.SearchConfig{
		CacheTTL:         cfg.Search.CacheTTL,
		DefaultLimit:     cfg.Search.DefaultLimit,
		FuzzyMinQueryLen: cfg.Search.FuzzyMinQueryLen,
		FuzzyThreshold:   cfg.Search.FuzzyThreshold,
	}

	return service.NewSearchService(storeHandle.Store, indexHandle.TagIndex, resultCache, searchCfg, log.Logger), nil
}

// TriggerTagReindexIfNeeded rebuilds the search index when it is empty but
// active tags exist. Should be called after all services are wired.
func TriggerTagReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tagService := do.MustInvoke[*service.TagService](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.DocumentCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	tags, err := storeHandle.ListActiveTags(ctx)
	if err != nil || len(tags) == 0 {
		return
	}

	log.Info("Search index is empty but tags exist, triggering initial reindex",
		"tag_count", len(tags),
	)

	go func() {
		indexed, err := tagService.RebuildIndex(context.Background())
		if err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		log.Info("Initial search reindex completed", "documents", indexed)
	}()
}
