package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// SnowflakeSource loads a dataset from a Snowflake query
type SnowflakeSource struct {
	db     *sqlx.DB
	cfg    *config.SnowflakeConfig
	query  string
	label  string
	logger *zap.Logger
}

// NewSnowflakeSource connects to Snowflake and prepares a query-backed source
func NewSnowflakeSource(ctx context.Context, cfg *config.SnowflakeConfig, query string, logger *zap.Logger) (*SnowflakeSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("snowflake config is required")
	}
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger = logger.With(zap.String("source", "snowflake"))
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("database", cfg.Database))

	db, err := sqlx.Open("snowflake", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening Snowflake connection: %w", err)
	}

	applyPoolSettings(db.DB, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime)

	if err := pingWithTimeout(ctx, db.DB, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to Snowflake: %w", err)
	}

	return &SnowflakeSource{
		db:     db,
		cfg:    cfg,
		query:  query,
		label:  fmt.Sprintf("snowflake:%s", cfg.Database),
		logger: logger,
	}, nil
}

// Fetch implements DatasetSource
func (s *SnowflakeSource) Fetch(ctx context.Context) (*dataset.Table, error) {
	queryCtx := ctx
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(queryCtx, s.query)
	if err != nil {
		return nil, fmt.Errorf("querying Snowflake: %w", err)
	}
	defer rows.Close()

	t, err := rowsToTable(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loaded Snowflake dataset",
		zap.Int("rows", t.Rows()),
		zap.Int("columns", t.Cols()))
	return t, nil
}

// Label implements DatasetSource
func (s *SnowflakeSource) Label() string { return s.label }

// Close implements DatasetSource
func (s *SnowflakeSource) Close() error {
	s.logger.Info("Closing Snowflake connection")
	return s.db.Close()
}
