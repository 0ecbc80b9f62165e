package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gridpatrol/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DB is the command journal: commands, captures, patrols, the outbox, the
// audit trail and the operator accounts.
type DB struct {
	*sql.DB
	dialect Dialect
	driver  string
}

// Open connects to the configured journal backend and brings its schema up
// to date.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return openSQLite(cfg.SQLite.Path)
	case "postgres":
		return openPostgres(&cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func openSQLite(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite: no journal path configured")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The poll loop, dispatcher and web handlers all write; one connection
	// serializes them.
	sqlDB.SetMaxOpenConns(1)
	return initJournal(sqlDB, sqliteDialect{}, "sqlite")
}

func openPostgres(cfg *config.PostgresConfig) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s application_name=gridpatrol",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	return initJournal(sqlDB, postgresDialect{}, "postgres")
}

func initJournal(sqlDB *sql.DB, dialect Dialect, driver string) (*DB, error) {
	db := &DB{DB: sqlDB, dialect: dialect, driver: driver}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", driver, err)
	}
	return db, nil
}

func (db *DB) Dialect() Dialect { return db.dialect }
func (db *DB) Driver() string   { return db.driver }

// Q rewrites ? placeholders and datetime literals for PostgreSQL, passes through for SQLite.
func (db *DB) Q(query string) string {
	if db.driver == "postgres" {
		query = strings.ReplaceAll(query, sqliteDialect{}.Now(), db.dialect.Now())
		return Rebind(query)
	}
	return query
}

type columnKind int

const (
	flagColumn columnKind = iota
	timestampColumn
)

// addedColumns are columns introduced after the first schema. CREATE TABLE
// IF NOT EXISTS leaves an older journal untouched, so they are added here.
var addedColumns = []struct {
	table, column string
	kind          columnKind
}{
	{"commands", "target_home", flagColumn},
	{"captures", "target_home", flagColumn},
	{"patrol_steps", "target_home", flagColumn},
	{"admin_users", "last_login_at", timestampColumn},
}

func (db *DB) migrate() error {
	var schema string
	switch db.driver {
	case "sqlite":
		schema = schemaSQLite
	case "postgres":
		schema = schemaPostgres
	default:
		return fmt.Errorf("no schema for driver: %s", db.driver)
	}
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	for _, c := range addedColumns {
		have, err := db.hasColumn(c.table, c.column)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", c.table, err)
		}
		if have {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.column, columnDecl(db.dialect, c.kind))
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("add %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	rows, err := db.Query(db.dialect.ColumnsQuery(), table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
