package store

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// sqliteDSN builds the connection string for one of the SQLite drivers.
// The two drivers spell pragmas differently.
func sqliteDSN(driver, path string, busy time.Duration) string {
	ms := strconv.FormatInt(busy.Milliseconds(), 10)
	q := url.Values{}

	switch driver {
	case DriverSQLite:
		q.Add("_pragma", "busy_timeout("+ms+")")
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
		q.Set("_txlock", "immediate")
	default:
		q.Set("_busy_timeout", ms)
		q.Set("_foreign_keys", "on")
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
		q.Set("_txlock", "immediate")
	}

	path = strings.TrimPrefix(path, "file:")
	if path == "" {
		path = ":memory:"
	}
	return "file:" + path + "?" + q.Encode()
}

// isMemoryPath reports whether path names a private in-memory SQLite
// database. Every connection opened for it sees a database of its own.
func isMemoryPath(path string) bool {
	path = strings.TrimPrefix(path, "file:")
	return path == "" || path == ":memory:" || strings.Contains(path, "mode=memory")
}

// mysqlConfig parses a go-sql-driver DSN and applies the settings the
// repositories rely on.
func mysqlConfig(dsn string, timeout time.Duration) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}

	cfg.ParseTime = true
	// UPDATE must report matched rows, not changed rows, for conflict detection
	cfg.ClientFoundRows = true
	if cfg.Timeout == 0 {
		cfg.Timeout = timeout
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["transaction_isolation"]; !ok {
		cfg.Params["transaction_isolation"] = "'READ-COMMITTED'"
	}

	return cfg, nil
}
