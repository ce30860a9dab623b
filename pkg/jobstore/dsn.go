package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"
	_ "modernc.org/sqlite"
)

// driverSQLite and driverLibsql are the database/sql driver names that
// resolveDSN picks between. Local file paths and in-memory databases go through the
// cgo-free modernc.org/sqlite driver; libsql:// and https:// URLs go
// through the libsql client — a local/remote split collapsed here into one
// driver-selection function since the job store has no cgo-gated path.
const (
	driverSQLite = "sqlite"
	driverLibsql = "libsql"
)

// Config selects and configures the backing database for a Store.
type Config struct {
	// Path is a local filesystem path to the SQLite database file.
	// Mutually exclusive with URL; ":memory:" opens a private in-memory
	// database, useful for tests.
	Path string

	// URL is a libsql/Turso URL (libsql://..., https://...) for a
	// replicated remote store. When set, it takes precedence over Path.
	URL string

	// AuthToken is appended to a URL-based DSN as authToken=... when the
	// URL doesn't already carry one.
	AuthToken string
}

// OpenRaw opens (and, for local files, creates) the configured database and
// applies the pragmas appropriate for a single-writer durable queue.
func OpenRaw(ctx context.Context, cfg Config) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver, dsn, err := resolveDSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve job store dsn: %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping job store: %w", err)
	}

	if driver == driverSQLite {
		if err := configureLocalSQLite(ctx, db, dsn); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

func resolveDSN(cfg Config) (driver, dsn string, err error) {
	if u := strings.TrimSpace(cfg.URL); u != "" {
		dsn, err = addAuthToken(u, cfg.AuthToken)
		return driverLibsql, dsn, err
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", "", errors.New("job store requires a Path or a URL")
	}
	if path == ":memory:" {
		return driverSQLite, path, nil
	}
	if err := ensureStoreDir(path); err != nil {
		return "", "", err
	}
	return driverSQLite, "file:" + filepath.Clean(path), nil
}

func addAuthToken(dsn, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func configureLocalSQLite(ctx context.Context, db *sql.DB, dsn string) error {
	if dsn == ":memory:" {
		return nil
	}

	// One pooled connection keeps every statement serialized through a
	// single SQLite handle, which is what lets Store's claim mutex give
	// the at-most-one-claim guarantee the claim protocol requires.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

func ensureStoreDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job store directory: %w", err)
	}
	return nil
}
