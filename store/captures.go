package store

import (
	"time"

	"gridpatrol/grid"
)

type Capture struct {
	ID        int64           `json:"id"`
	CommandID string          `json:"command_id"`
	Target    grid.Coordinate `json:"target"`
	Filename  string          `json:"filename"`
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (db *DB) InsertCapture(c *Capture) error {
	_, err := db.Exec(db.Q(`INSERT INTO captures (command_id, target_x, target_y, target_home, filename, ok, error) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.CommandID, c.Target.X, c.Target.Y, c.Target.IsHome(), c.Filename, c.OK, c.Error)
	return err
}

func (db *DB) ListCaptures(limit int) ([]*Capture, error) {
	rows, err := db.Query(db.Q(`SELECT id, command_id, target_x, target_y, target_home, filename, ok, error, created_at FROM captures ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var caps []*Capture
	for rows.Next() {
		var c Capture
		var createdAt any
		var x, y int
		var home bool
		if err := rows.Scan(&c.ID, &c.CommandID, &x, &y, &home, &c.Filename, &c.OK, &c.Error, &createdAt); err != nil {
			return nil, err
		}
		c.Target = target(x, y, home)
		c.CreatedAt = parseTime(createdAt)
		caps = append(caps, &c)
	}
	return caps, rows.Err()
}

// CountCapturesForCommand is used to check the one-capture-per-edge rule.
func (db *DB) CountCapturesForCommand(commandID string) (int, error) {
	var n int
	err := db.QueryRow(db.Q(`SELECT COUNT(*) FROM captures WHERE command_id=?`), commandID).Scan(&n)
	return n, err
}
