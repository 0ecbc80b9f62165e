package store

import (
	"fmt"
	"strings"
	"time"
)

// Dialect is the SQL that differs between the two journal backends. Queries
// are written for SQLite and rewritten by DB.Q; the dialect covers what a
// rewrite cannot, which is column declarations and catalog lookups.
type Dialect interface {
	Now() string
	BoolType() string
	BoolFalse() string
	TimestampType() string
	// ColumnsQuery lists a table's column names. It takes the table name as
	// its only parameter.
	ColumnsQuery() string
}

type sqliteDialect struct{}

func (sqliteDialect) Now() string           { return "datetime('now','localtime')" }
func (sqliteDialect) BoolType() string      { return "INTEGER" }
func (sqliteDialect) BoolFalse() string     { return "0" }
func (sqliteDialect) TimestampType() string { return "TEXT" }
func (sqliteDialect) ColumnsQuery() string  { return `SELECT name FROM pragma_table_info(?)` }

type postgresDialect struct{}

func (postgresDialect) Now() string           { return "NOW()" }
func (postgresDialect) BoolType() string      { return "BOOLEAN" }
func (postgresDialect) BoolFalse() string     { return "FALSE" }
func (postgresDialect) TimestampType() string { return "TIMESTAMPTZ" }
func (postgresDialect) ColumnsQuery() string {
	return `SELECT column_name FROM information_schema.columns WHERE table_name = $1`
}

// columnDecl renders the declaration of a column added by migration.
func columnDecl(d Dialect, kind columnKind) string {
	switch kind {
	case flagColumn:
		return d.BoolType() + " NOT NULL DEFAULT " + d.BoolFalse()
	default:
		return d.TimestampType()
	}
}

// parseTime converts a scanned timestamp. SQLite hands back text in one of
// several layouts, Postgres a time.Time.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case []byte:
		return parseTime(string(t))
	case string:
		if t == "" {
			return time.Time{}
		}
		for _, layout := range []string{
			"2006-01-02 15:04:05",
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05-07:00",
			"2006-01-02 15:04:05.999999-07:00",
		} {
			if parsed, err := time.ParseInLocation(layout, t, time.Local); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

// parseTimePtr is parseTime for nullable columns such as resolved_at.
func parseTimePtr(v any) *time.Time {
	t := parseTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	n := 0
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
