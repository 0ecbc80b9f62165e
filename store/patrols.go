package store

import (
	"fmt"
	"time"

	"gridpatrol/grid"
)

type Patrol struct {
	ID         string        `json:"id"`
	Rounds     int           `json:"rounds"`
	Planned    int           `json:"planned"`
	Dispatched int           `json:"dispatched"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Status     string        `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Steps      []*PatrolStep `json:"steps,omitempty"`
}

type PatrolStep struct {
	PatrolID  string          `json:"patrol_id"`
	Index     int             `json:"index"`
	Round     int             `json:"round"`
	Target    grid.Coordinate `json:"target"`
	CommandID string          `json:"command_id"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason"`
	Message   string          `json:"message"`
}

func (db *DB) InsertPatrol(id string, rounds, planned int) error {
	_, err := db.Exec(db.Q(`INSERT INTO patrols (id, rounds, planned) VALUES (?, ?, ?)`), id, rounds, planned)
	if err != nil {
		return fmt.Errorf("insert patrol: %w", err)
	}
	return nil
}

func (db *DB) InsertPatrolStep(s *PatrolStep) error {
	_, err := db.Exec(db.Q(`INSERT INTO patrol_steps (patrol_id, step_index, round, target_x, target_y, target_home, command_id, status, reason, message) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.PatrolID, s.Index, s.Round, s.Target.X, s.Target.Y, s.Target.IsHome(), s.CommandID, s.Status, s.Reason, s.Message)
	return err
}

func (db *DB) FinishPatrol(p *Patrol) error {
	_, err := db.Exec(db.Q(`UPDATE patrols SET dispatched=?, succeeded=?, failed=?, status=?, finished_at=datetime('now','localtime') WHERE id=?`),
		p.Dispatched, p.Succeeded, p.Failed, p.Status, p.ID)
	if err != nil {
		return fmt.Errorf("finish patrol %s: %w", p.ID, err)
	}
	return nil
}

func (db *DB) GetPatrol(id string) (*Patrol, error) {
	row := db.QueryRow(db.Q(`SELECT id, rounds, planned, dispatched, succeeded, failed, status, created_at, finished_at FROM patrols WHERE id=?`), id)
	p, err := scanPatrol(row)
	if err != nil {
		return nil, err
	}
	p.Steps, err = db.ListPatrolSteps(id)
	return p, err
}

func (db *DB) ListPatrols(limit int) ([]*Patrol, error) {
	rows, err := db.Query(db.Q(`SELECT id, rounds, planned, dispatched, succeeded, failed, status, created_at, finished_at FROM patrols ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Patrol
	for rows.Next() {
		p, err := scanPatrol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) ListPatrolSteps(patrolID string) ([]*PatrolStep, error) {
	rows, err := db.Query(db.Q(`SELECT patrol_id, step_index, round, target_x, target_y, target_home, command_id, status, reason, message FROM patrol_steps WHERE patrol_id=? ORDER BY step_index`), patrolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var steps []*PatrolStep
	for rows.Next() {
		var s PatrolStep
		var x, y int
		var home bool
		if err := rows.Scan(&s.PatrolID, &s.Index, &s.Round, &x, &y, &home, &s.CommandID, &s.Status, &s.Reason, &s.Message); err != nil {
			return nil, err
		}
		s.Target = target(x, y, home)
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}

func scanPatrol(s scanner) (*Patrol, error) {
	var p Patrol
	var createdAt, finishedAt any
	if err := s.Scan(&p.ID, &p.Rounds, &p.Planned, &p.Dispatched, &p.Succeeded, &p.Failed, &p.Status, &createdAt, &finishedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.FinishedAt = parseTimePtr(finishedAt)
	return &p, nil
}
