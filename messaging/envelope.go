package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every message published or consumed.
type Envelope struct {
	MsgType   string    `json:"msg_type"`
	MsgID     string    `json:"msg_id"`
	StationID string    `json:"station_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEnvelope stamps payload with a fresh ID and the current time.
func NewEnvelope(msgType, stationID string, payload any) *Envelope {
	return &Envelope{
		MsgType:   msgType,
		MsgID:     uuid.NewString(),
		StationID: stationID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// RawEnvelope is used for two-stage unmarshalling: first decode the envelope,
// then decode payload based on msg_type.
type RawEnvelope struct {
	MsgType   string          `json:"msg_type"`
	MsgID     string          `json:"msg_id"`
	StationID string          `json:"station_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// DecodeEnvelope unmarshals a raw message into a typed Envelope with the correct payload type.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var raw RawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	env := &Envelope{
		MsgType:   raw.MsgType,
		MsgID:     raw.MsgID,
		StationID: raw.StationID,
		Timestamp: raw.Timestamp,
	}

	var target any
	switch raw.MsgType {
	case TypeMoveRequest:
		target = &MoveRequest{}
	case TypePatrolRequest:
		target = &PatrolRequest{}
	case TypeHomeRequest, TypePatrolStopRequest:
		return env, nil
	case TypeCommandAccepted:
		target = &CommandAccepted{}
	case TypeCommandResolved:
		target = &CommandResolved{}
	case TypeCaptureTaken:
		target = &CaptureTaken{}
	case TypePatrolStarted:
		target = &PatrolStarted{}
	case TypePatrolStep:
		target = &PatrolStep{}
	case TypePatrolFinished:
		target = &PatrolFinished{}
	default:
		return nil, fmt.Errorf("unknown msg_type: %q", raw.MsgType)
	}
	if len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, target); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", raw.MsgType, err)
		}
	}
	env.Payload = deref(target)
	return env, nil
}

func deref(v any) any {
	switch p := v.(type) {
	case *MoveRequest:
		return *p
	case *PatrolRequest:
		return *p
	case *CommandAccepted:
		return *p
	case *CommandResolved:
		return *p
	case *CaptureTaken:
		return *p
	case *PatrolStarted:
		return *p
	case *PatrolStep:
		return *p
	case *PatrolFinished:
		return *p
	}
	return v
}
