package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/config"
)

// Factory creates dataset sources from configuration
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new source factory
func NewFactory(cfg *config.Config, logger *zap.Logger) (*Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Factory{cfg: cfg, logger: logger}, nil
}

// CreateCSVSource creates a file-backed source
func (f *Factory) CreateCSVSource(path string) (DatasetSource, error) {
	return NewCSVSource(path, f.logger)
}

// CreatePostgresSource creates a query-backed PostgreSQL source. Requires
// PostgreSQL configuration to be present.
func (f *Factory) CreatePostgresSource(ctx context.Context, query string) (DatasetSource, error) {
	if f.cfg.Postgres == nil {
		return nil, fmt.Errorf("postgres configuration is not set")
	}
	return NewPostgresSource(ctx, f.cfg.Postgres, query, f.logger)
}

// CreateSnowflakeSource creates a query-backed Snowflake source. Requires
// Snowflake configuration to be present.
func (f *Factory) CreateSnowflakeSource(ctx context.Context, query string) (DatasetSource, error) {
	if f.cfg.Snowflake == nil {
		return nil, fmt.Errorf("snowflake configuration is not set")
	}
	return NewSnowflakeSource(ctx, f.cfg.Snowflake, query, f.logger)
}
