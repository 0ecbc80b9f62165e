package store

import (
	"fmt"
	"time"

	"gridpatrol/grid"
)

// Command is one journaled dispatch attempt.
type Command struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Target     grid.Coordinate `json:"target"`
	Source     string          `json:"source"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason"`
	Detail     string          `json:"detail"`
	Edge       bool            `json:"edge"`
	Captured   bool            `json:"captured"`
	Filename   string          `json:"filename"`
	Ticks      int             `json:"ticks"`
	ElapsedMS  int64           `json:"elapsed_ms"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
}

const commandSelectCols = `id, kind, target_x, target_y, target_home, source, status, reason, detail, edge, captured, filename, ticks, elapsed_ms, created_at, resolved_at`

func (db *DB) InsertCommand(c *Command) error {
	_, err := db.Exec(db.Q(`INSERT INTO commands (id, kind, target_x, target_y, target_home, source, status, reason, detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.Kind, c.Target.X, c.Target.Y, c.Target.IsHome(), c.Source, c.Status, c.Reason, c.Detail)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// ResolveCommand records the terminal outcome of an accepted command.
func (db *DB) ResolveCommand(c *Command) error {
	_, err := db.Exec(db.Q(`UPDATE commands SET status=?, reason=?, detail=?, edge=?, captured=?, filename=?, ticks=?, elapsed_ms=?, resolved_at=datetime('now','localtime') WHERE id=?`),
		c.Status, c.Reason, c.Detail, c.Edge, c.Captured, c.Filename, c.Ticks, c.ElapsedMS, c.ID)
	if err != nil {
		return fmt.Errorf("resolve command %s: %w", c.ID, err)
	}
	return nil
}

func (db *DB) GetCommand(id string) (*Command, error) {
	row := db.QueryRow(db.Q(`SELECT `+commandSelectCols+` FROM commands WHERE id=?`), id)
	return scanCommand(row)
}

func (db *DB) ListCommands(limit int) ([]*Command, error) {
	rows, err := db.Query(db.Q(`SELECT `+commandSelectCols+` FROM commands ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cmds []*Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// ListUnresolvedCommands returns accepted commands that never got an
// outcome, for example because the process stopped mid-poll.
func (db *DB) ListUnresolvedCommands() ([]*Command, error) {
	rows, err := db.Query(db.Q(`SELECT ` + commandSelectCols + ` FROM commands WHERE status='accepted' ORDER BY created_at`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cmds []*Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCommand(s scanner) (*Command, error) {
	var c Command
	var createdAt, resolvedAt any
	var x, y int
	var home bool
	if err := s.Scan(&c.ID, &c.Kind, &x, &y, &home, &c.Source, &c.Status, &c.Reason, &c.Detail,
		&c.Edge, &c.Captured, &c.Filename, &c.Ticks, &c.ElapsedMS, &createdAt, &resolvedAt); err != nil {
		return nil, err
	}
	c.Target = target(x, y, home)
	c.CreatedAt = parseTime(createdAt)
	c.ResolvedAt = parseTimePtr(resolvedAt)
	return &c, nil
}

// target rebuilds a journaled coordinate; HOME is stored as a flag, not as
// a cell.
func target(x, y int, home bool) grid.Coordinate {
	if home {
		return grid.Home
	}
	return grid.Cell(x, y)
}
