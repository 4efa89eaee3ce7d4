package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Options struct {
	Driver          string
	DataSource      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

type Option func(*Options)

// WithDriver selects the database/sql driver. Aliases are normalised by
// NormalizeDriver.
func WithDriver(driver string) Option {
	return func(o *Options) { o.Driver = driver }
}

func WithDataSource(dsn string) Option {
	return func(o *Options) { o.DataSource = dsn }
}

func WithMaxOpenConns(count int) Option {
	return func(o *Options) { o.MaxOpenConns = count }
}

func WithMaxIdleConns(count int) Option {
	return func(o *Options) { o.MaxIdleConns = count }
}

func WithConnMaxLifetime(duration time.Duration) Option {
	return func(o *Options) { o.ConnMaxLifetime = duration }
}

func WithConnMaxIdleTime(duration time.Duration) Option {
	return func(o *Options) { o.ConnMaxIdleTime = duration }
}

func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *Options) {
		o.RetryAttempts = attempts
		o.RetryDelay = delay
	}
}

// NormalizeDriver maps common spellings onto the registered driver names:
// "sqlite3" for mattn/go-sqlite3 and "pgx" for the pgx stdlib adapter.
func NormalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "pgx", "postgres", "postgresql":
		return "pgx"
	}
	return driver
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:") || strings.Contains(dsn, "mode=memory")
}

// New opens a connection pool and pings it, retrying with a linear backoff.
// The caller must blank-import the driver.
func New(ctx context.Context, opts ...Option) (*sql.DB, error) {
	options := &Options{
		Driver:          "sqlite3",
		DataSource:      ":memory:",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	options.Driver = NormalizeDriver(options.Driver)
	if options.Driver == "" {
		return nil, fmt.Errorf("database driver cannot be empty")
	}
	if options.DataSource == "" {
		return nil, fmt.Errorf("database data source cannot be empty")
	}
	if options.RetryAttempts < 1 {
		options.RetryAttempts = 1
	}
	if options.Driver == "sqlite3" && isMemoryDSN(options.DataSource) {
		// Every sqlite connection to a memory DSN opens its own database.
		options.MaxOpenConns = 1
		options.MaxIdleConns = 1
		options.ConnMaxLifetime = 0
		options.ConnMaxIdleTime = 0
	}

	var db *sql.DB
	var err error

	for i := 0; i < options.RetryAttempts; i++ {
		db, err = sql.Open(options.Driver, options.DataSource)
		if err == nil {
			db.SetMaxOpenConns(options.MaxOpenConns)
			db.SetMaxIdleConns(options.MaxIdleConns)
			db.SetConnMaxLifetime(options.ConnMaxLifetime)
			db.SetConnMaxIdleTime(options.ConnMaxIdleTime)

			if err = db.PingContext(ctx); err == nil {
				return db, nil
			}
			db.Close()
		}

		if i < options.RetryAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("connect to %s database: %w", options.Driver, ctx.Err())
			case <-time.After(time.Duration(i+1) * options.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to %s database after %d attempts: %w", options.Driver, options.RetryAttempts, err)
}
