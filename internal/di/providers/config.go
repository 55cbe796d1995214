// Package providers contains dependency injection providers for the Quill server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/quillapp/quill-server/internal/config"
	"github.com/quillapp/quill-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Options{
		Env:       cfg.App.Environment,
		Level:     logger.ParseLevel(cfg.Logger.Level),
		AddSource: cfg.App.Environment == "development",
	})

	log.Info("Starting Quill Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
	)

	return log, nil
}
