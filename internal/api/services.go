package api

import (
	"github.com/quillapp/quill-server/internal/service"
)

// Services groups the business logic services used by the API server.
type Services struct {
	Tag       *service.TagService
	Search    *service.SearchService
	Analytics *service.AnalyticsService
}
