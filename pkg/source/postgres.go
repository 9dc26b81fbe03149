package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// PostgresSource loads a dataset from a PostgreSQL query
type PostgresSource struct {
	db     *sqlx.DB
	cfg    *config.PostgresConfig
	query  string
	label  string
	logger *zap.Logger
}

// NewPostgresSource connects to PostgreSQL and prepares a query-backed source
func NewPostgresSource(ctx context.Context, cfg *config.PostgresConfig, query string, logger *zap.Logger) (*PostgresSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres config is required")
	}
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger = logger.With(zap.String("source", "postgres"))
	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))

	db, err := sqlx.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening PostgreSQL connection: %w", err)
	}

	applyPoolSettings(db.DB, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime)

	if err := pingWithTimeout(ctx, db.DB, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}

	return &PostgresSource{
		db:     db,
		cfg:    cfg,
		query:  query,
		label:  fmt.Sprintf("postgres:%s", cfg.Database),
		logger: logger,
	}, nil
}

// Fetch implements DatasetSource
func (s *PostgresSource) Fetch(ctx context.Context) (*dataset.Table, error) {
	queryCtx := ctx
	if s.cfg.StatementTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, s.cfg.StatementTimeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(queryCtx, s.query)
	if err != nil {
		return nil, fmt.Errorf("querying PostgreSQL: %w", err)
	}
	defer rows.Close()

	t, err := rowsToTable(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loaded PostgreSQL dataset",
		zap.Int("rows", t.Rows()),
		zap.Int("columns", t.Cols()))
	return t, nil
}

// Label implements DatasetSource
func (s *PostgresSource) Label() string { return s.label }

// Close implements DatasetSource
func (s *PostgresSource) Close() error {
	s.logger.Info("Closing PostgreSQL connection")
	return s.db.Close()
}
