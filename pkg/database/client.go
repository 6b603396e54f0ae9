// Package database opens the job-record store (PostgreSQL through pgx or
// SQLite through modernc) and applies the embedded migrations.
package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
	_ "modernc.org/sqlite"             // Register sqlite driver for database/sql
)

// Dialect identifies the SQL flavour behind a Client.
type Dialect string

// Supported dialects
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Client wraps the database handle and the dialect it speaks.
type Client struct {
	db         *stdsql.DB
	dialect    Dialect
	connString string
}

// DB returns the underlying database connection for health checks and direct queries
func (c *Client) DB() *stdsql.DB {
	return c.db
}

// Dialect returns the SQL flavour.
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// ConnString returns the Postgres connection string, used to open the
// dedicated LISTEN connection. It is empty for SQLite.
func (c *Client) ConnString() string {
	return c.connString
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Rebind rewrites ? placeholders into the dialect's form ($1, $2, ... for Postgres).
// Queries must not contain a literal question mark.
func (c *Client) Rebind(query string) string {
	if c.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NewClientFromDB wraps an already migrated handle (useful for testing).
func NewClientFromDB(db *stdsql.DB, dialect Dialect, connString string) *Client {
	return &Client{db: db, dialect: dialect, connString: connString}
}

// NewClient opens the configured database, verifies connectivity and
// applies pending migrations.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	switch Dialect(cfg.Driver) {
	case DialectPostgres, "":
		return openPostgres(ctx, cfg)
	case DialectSQLite:
		return openSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg Config) (*Client, error) {
	dsn := cfg.DSN()
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db, DialectPostgres, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{db: db, dialect: DialectPostgres, connString: dsn}, nil
}

func openSQLite(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SQLitePath == "" {
		return nil, fmt.Errorf("sqlite driver requires a database path")
	}
	dsn := "file:" + cfg.SQLitePath +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between pool members.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db, DialectSQLite, "main"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{db: db, dialect: DialectSQLite}, nil
}
