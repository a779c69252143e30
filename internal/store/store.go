package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3" // register "sqlite3"
	_ "modernc.org/sqlite"          // register "sqlite"

	"github.com/roach88/lanatus/internal/session"
)

// Supported driver names.
const (
	DriverSQLite3 = "sqlite3"
	DriverSQLite  = "sqlite"
	DriverMySQL   = "mysql"
)

// Dialect names the SQL flavour of a driver, for schema scripts.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// DefaultBusyTimeout is the lock wait applied when Options.BusyTimeout is zero.
const DefaultBusyTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	// Driver is one of DriverSQLite3, DriverSQLite or DriverMySQL.
	Driver string

	// DSN is a file path for the SQLite drivers and a go-sql-driver DSN for MySQL.
	DSN string

	// MaxOpenConns limits the pool. Zero means 4, or 1 for an in-memory
	// SQLite database, which cannot be shared between connections.
	MaxOpenConns int

	// BusyTimeout is the SQLite busy timeout and the MySQL dial timeout.
	BusyTimeout time.Duration

	// Logger receives statement logs at debug level. Nil discards them.
	Logger *slog.Logger
}

// Store hands out connections for scoped sessions.
type Store struct {
	*metricsCollector

	db      *sql.DB
	dialect Dialect
	log     *slog.Logger
}

// Open opens the database and verifies the connection works.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}
	memory := opts.Driver != DriverMySQL && isMemoryPath(opts.DSN)
	switch {
	case memory && opts.MaxOpenConns > 1:
		return nil, fmt.Errorf("in-memory database needs max open conns 1, got %d: each connection would see its own database", opts.MaxOpenConns)
	case memory:
		opts.MaxOpenConns = 1
	case opts.MaxOpenConns == 0:
		opts.MaxOpenConns = 4
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)

	switch opts.Driver {
	case DriverSQLite3, DriverSQLite:
		dialect = DialectSQLite
		db, err = sql.Open(opts.Driver, sqliteDSN(opts.Driver, opts.DSN, opts.BusyTimeout))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	case DriverMySQL:
		dialect = DialectMySQL
		cfg, err := mysqlConfig(opts.DSN, opts.BusyTimeout)
		if err != nil {
			return nil, err
		}
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create connector: %w", err)
		}
		db = sql.OpenDB(connector)
	default:
		return nil, fmt.Errorf("unsupported driver %q: must be one of %v", opts.Driver, Drivers())
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxOpenConns)

	// Verify connection works
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Debug("database opened", "driver", opts.Driver, "dialect", dialect)

	return &Store{
		metricsCollector: newMetricsCollector(opts.Driver, db.Stats),
		db:               db,
		dialect:          dialect,
		log:              log,
	}, nil
}

// Drivers returns the supported driver names.
func Drivers() []string {
	return []string{DriverSQLite3, DriverSQLite, DriverMySQL}
}

// Close closes the pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dialect returns the SQL flavour of the opened driver.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Acquire takes one connection from the pool and wraps it in a fresh
// session. The session owns the connection until it is closed or disposed.
func (s *Store) Acquire(ctx context.Context) (*session.Session, error) {
	c, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return session.New(newConn(c, s.log)), nil
}

// Stats returns pool statistics.
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRowContext(ctx, query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
