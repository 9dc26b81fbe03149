// Package source loads datasets into the Table model from files and
// databases. Each source is constructed through the factory and owns its
// connection lifecycle.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// DatasetSource produces one table per fetch
type DatasetSource interface {
	// Fetch loads the dataset
	Fetch(ctx context.Context) (*dataset.Table, error)

	// Label returns the filename-style label used in run metadata
	Label() string

	// Close releases the source's resources
	Close() error
}

// rowsToTable materializes a SQL result set into the column-oriented model
func rowsToTable(rows *sql.Rows) (*dataset.Table, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading column names: %w", err)
	}

	columns := make([]dataset.Column, len(names))
	for i, name := range names {
		columns[i] = dataset.Column{Name: name}
	}

	scan := make([]interface{}, len(names))
	for rows.Next() {
		for i := range scan {
			scan[i] = new(interface{})
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i := range columns {
			raw := *(scan[i].(*interface{}))
			columns[i].Values = append(columns[i].Values, toValue(raw))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return dataset.New(columns)
}

// toValue converts a driver value into the dataset model
func toValue(raw interface{}) dataset.Value {
	switch v := raw.(type) {
	case nil:
		return dataset.Null()
	case int64:
		return dataset.Int(v)
	case float64:
		return dataset.Float(v)
	case bool:
		return dataset.Bool(v)
	case time.Time:
		return dataset.Time(v)
	case []byte:
		return dataset.String(string(v))
	case string:
		return dataset.String(v)
	default:
		return dataset.String(fmt.Sprintf("%v", v))
	}
}

// pingWithTimeout verifies a connection is alive before first use
func pingWithTimeout(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping failed after %v: %w", timeout, err)
	}
	return nil
}

// applyPoolSettings configures database connection pool settings
func applyPoolSettings(db *sql.DB, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	if maxIdleTime > 0 {
		db.SetConnMaxIdleTime(maxIdleTime)
	}
}
