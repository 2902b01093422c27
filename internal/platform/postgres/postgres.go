// Package postgres opens the shared database handle used by the Postgres
// store implementations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"mobilefix/pkg/platform/sentinel"
)

// Open connects to Postgres and verifies the connection. Returns nil, nil
// when dsn is empty so the caller can fall back to in-memory stores; an
// unreachable database surfaces as sentinel.ErrUnavailable.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: postgres ping failed: %v", sentinel.ErrUnavailable, err)
	}

	return db, nil
}
