// Package store is the durable persistence layer: sessions, cron jobs,
// deferred tasks, the memory full-text index, and the skills registry, all
// in one embedded modernc.org/sqlite database file, schema-versioned with
// golang-migrate.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/clade/internal/clerr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the top-level store handle. Open-failure is fatal to the process;
// every other failure propagates as a typed clerr.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and runs any
// pending migrations. modernc.org/sqlite is cgo-free; migrations run
// through moderncMigrateDriver (below) rather than golang-migrate's own
// database/sqlite3 subpackage, since that subpackage unconditionally
// imports the cgo-based mattn/go-sqlite3 to register its driver name — so
// no cgo sqlite driver is ever linked in.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // sqlite: single writer, matches the embedded-DB contract

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{sql: sqlDB}, nil
}

func runMigrations(sqlDB *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := newModerncMigrateDriver(sqlDB)
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// SchemaVersion reports the applied migration version, for doctor checks.
func (db *DB) SchemaVersion() (uint, bool, error) {
	var version int
	var dirty bool
	err := db.sql.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint(version), dirty, nil
}

// Close releases the underlying database handle.
func (db *DB) Close() error {
	return db.sql.Close()
}

func storeErr(msg string, err error) error {
	if err == sql.ErrNoRows {
		return clerr.NotFoundf("%s", msg)
	}
	return clerr.Wrap(clerr.StoreErr, msg, err)
}

// moderncMigrateDriver is a minimal golang-migrate database.Driver
// implementation over an already-open modernc.org/sqlite *sql.DB. It exists
// only to keep golang-migrate's database/sqlite3 subpackage (which imports
// the cgo-based mattn/go-sqlite3 purely to register a driver name we never
// use) out of the build. It supports exactly what runMigrations needs:
// applying the embedded .sql files in order and tracking the applied
// version, nothing more.
type moderncMigrateDriver struct {
	db *sql.DB
	mu sync.Mutex
}

func newModerncMigrateDriver(db *sql.DB) (*moderncMigrateDriver, error) {
	d := &moderncMigrateDriver{db: db}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER NOT NULL PRIMARY KEY,
		dirty BOOLEAN NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	return d, nil
}

func (d *moderncMigrateDriver) Open(url string) (database.Driver, error) {
	return nil, fmt.Errorf("moderncMigrateDriver: Open(url) unsupported, construct via newModerncMigrateDriver")
}

// Close is a no-op: the *sql.DB is owned and closed by store.DB, not by
// the migrate instance built on top of this driver.
func (d *moderncMigrateDriver) Close() error { return nil }

func (d *moderncMigrateDriver) Lock() error {
	d.mu.Lock()
	return nil
}

func (d *moderncMigrateDriver) Unlock() error {
	d.mu.Unlock()
	return nil
}

func (d *moderncMigrateDriver) Run(migration io.Reader) error {
	b, err := io.ReadAll(migration)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := d.db.Exec(string(b)); err != nil {
		return fmt.Errorf("run migration: %w", err)
	}
	return nil
}

func (d *moderncMigrateDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM schema_migrations`); err != nil {
		tx.Rollback()
		return err
	}
	if version >= 0 {
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)`, version, dirty); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (d *moderncMigrateDriver) Version() (int, bool, error) {
	var version int
	var dirty bool
	err := d.db.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err == sql.ErrNoRows {
		return database.NilVersion, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, dirty, nil
}

func (d *moderncMigrateDriver) Drop() error {
	_, err := d.db.Exec(`DROP TABLE IF EXISTS schema_migrations`)
	return err
}
