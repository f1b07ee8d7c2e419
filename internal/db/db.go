package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/quickcourt/quickcourt/internal/config"
)

const driverName = "sqlite3"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connection parameters every QuickCourt database is opened with unless the
// DSN already sets them.
var defaultDSNParams = []string{"_fk=1", "_busy_timeout=5000"}

// DB is the connection plus the query set bound to it. Inside RunInTx the
// Queries are bound to the transaction instead.
type DB struct {
	*sqlx.DB
	Queries *Queries
}

// New opens the SQLite database at dataSourceName and brings its schema up
// to date.
func New(dataSourceName string) (*DB, error) {
	conn, err := sqlx.Open(driverName, withDefaultParams(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// SQLite has a single writer.
	conn.SetMaxOpenConns(1)

	version, err := migrateUp(conn.DB)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}
	log.Debug().Uint("schema_version", version).Str("dsn", dataSourceName).Msg("Database ready")

	return &DB{DB: conn, Queries: NewQueries(conn)}, nil
}

func NewFromConfig(cfg *config.Config) (*DB, error) {
	if cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Filename), 0o755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}
	return New(cfg.Database.Filename)
}

// withDefaultParams appends each default parameter whose key the DSN does not
// already carry.
func withDefaultParams(dsn string) string {
	for _, param := range defaultDSNParams {
		key := param[:strings.IndexByte(param, '=')+1]
		if strings.Contains(dsn, key) {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + param
	}
	return dsn
}

// migrateUp applies the embedded migrations and returns the resulting schema
// version.
func migrateUp(conn *sql.DB) (uint, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("could not open migration source: %w", err)
	}
	target, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return 0, fmt.Errorf("could not create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", target)
	if err != nil {
		return 0, fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("could not read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// RunInTx runs fn against a DB whose Queries share one transaction. The
// transaction commits when fn returns nil and rolls back otherwise, including
// when fn panics.
func (db *DB) RunInTx(ctx context.Context, fn func(*DB) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			err = fmt.Errorf("error rolling back: %v (original error: %w)", rbErr, err)
		}
	}()

	if err = fn(&DB{DB: db.DB, Queries: NewQueries(tx)}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing: %w", err)
	}
	committed = true
	return nil
}
