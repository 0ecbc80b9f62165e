package statecache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "gridpatrol:"
	statusKey      = keyPrefix + "status"
	busyKey        = keyPrefix + "busy"
	commandKey     = keyPrefix + "command"
	indicatorKey   = keyPrefix + "indicator"
	patrolKey      = keyPrefix + "patrol"
	capturesKey    = keyPrefix + "captures"
	maxCaptureKeep = 50
)

// Mirror writes the latest engine state to Redis for external readers.
// A nil *Mirror is valid and does nothing.
type Mirror struct {
	client *redis.Client
}

func NewMirror(client *redis.Client) *Mirror {
	if client == nil {
		return nil
	}
	return &Mirror{client: client}
}

// Ping checks the connection.
func (m *Mirror) Ping(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.client.Ping(ctx).Err()
}

// SetStatus stores the last polled snapshot.
func (m *Mirror) SetStatus(ctx context.Context, snapshot any) error {
	return m.setJSON(ctx, statusKey, snapshot)
}

func (m *Mirror) SetBusy(ctx context.Context, busy bool, session uint64) error {
	if m == nil {
		return nil
	}
	return m.client.HSet(ctx, busyKey, "busy", busy, "session", session, "at", time.Now().UTC().Format(time.RFC3339Nano)).Err()
}

// Busy reads back the mirrored busy flag.
func (m *Mirror) Busy(ctx context.Context) (bool, error) {
	if m == nil {
		return false, nil
	}
	val, err := m.client.HGet(ctx, busyKey, "busy").Bool()
	if err == redis.Nil {
		return false, nil
	}
	return val, err
}

// SetCommand stores the in-flight command, or clears it when cmd is nil.
func (m *Mirror) SetCommand(ctx context.Context, cmd any) error {
	if m == nil {
		return nil
	}
	if cmd == nil {
		return m.client.Del(ctx, commandKey).Err()
	}
	return m.setJSON(ctx, commandKey, cmd)
}

func (m *Mirror) SetIndicator(ctx context.Context, state any) error {
	return m.setJSON(ctx, indicatorKey, state)
}

// SetPatrol stores live patrol progress, or clears it when progress is nil.
func (m *Mirror) SetPatrol(ctx context.Context, progress any) error {
	if m == nil {
		return nil
	}
	if progress == nil {
		return m.client.Del(ctx, patrolKey).Err()
	}
	return m.setJSON(ctx, patrolKey, progress)
}

// PushCapture prepends a capture record, keeping the most recent few.
func (m *Mirror) PushCapture(ctx context.Context, capture any) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(capture)
	if err != nil {
		return err
	}
	pipe := m.client.Pipeline()
	pipe.LPush(ctx, capturesKey, data)
	pipe.LTrim(ctx, capturesKey, 0, maxCaptureKeep-1)
	_, err = pipe.Exec(ctx)
	return err
}

// GetJSON decodes the value at one of the mirror keys into v. It reports
// false when the key is absent.
func (m *Mirror) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	if m == nil {
		return false, nil
	}
	data, err := m.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// Flush removes every mirror key.
func (m *Mirror) Flush(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.client.Del(ctx, Keys()...).Err()
}

// Keys lists the keys the mirror writes.
func Keys() []string {
	return []string{statusKey, busyKey, commandKey, indicatorKey, patrolKey, capturesKey}
}

func (m *Mirror) setJSON(ctx context.Context, key string, v any) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, key, data, 0).Err()
}
