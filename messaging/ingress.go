package messaging

import (
	"context"
	"log"
	"time"

	"gridpatrol/grid"
)

// Controller executes requests arriving on the commands topic.
type Controller interface {
	Move(ctx context.Context, target grid.Coordinate, source string) (string, error)
	StartPatrol(rounds int, source string) (string, error)
	StopPatrol() bool
}

// Ingress decodes request envelopes and hands them to a Controller.
// Requests are refused by the controller exactly as API requests are.
type Ingress struct {
	ctl     Controller
	timeout time.Duration
}

func NewIngress(ctl Controller) *Ingress {
	return &Ingress{ctl: ctl, timeout: 15 * time.Second}
}

// HandleRaw processes one inbound message.
func (in *Ingress) HandleRaw(data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		log.Printf("ingress: %v", err)
		return
	}
	source := "messaging"
	if env.StationID != "" {
		source = "messaging:" + env.StationID
	}

	ctx, cancel := context.WithTimeout(context.Background(), in.timeout)
	defer cancel()

	switch env.MsgType {
	case TypeMoveRequest:
		req := env.Payload.(MoveRequest)
		in.report(env, in.move(ctx, grid.Cell(req.X, req.Y), source))
	case TypeHomeRequest:
		in.report(env, in.move(ctx, grid.Home, source))
	case TypePatrolRequest:
		req := env.Payload.(PatrolRequest)
		if req.Rounds < 1 {
			req.Rounds = 1
		}
		id, err := in.ctl.StartPatrol(req.Rounds, source)
		if err == nil {
			log.Printf("ingress: %s started patrol %s", env.MsgID, id)
		}
		in.report(env, err)
	case TypePatrolStopRequest:
		if !in.ctl.StopPatrol() {
			log.Printf("ingress: %s: no patrol running", env.MsgID)
		}
	default:
		log.Printf("ingress: %s: unexpected msg_type %q", env.MsgID, env.MsgType)
	}
}

func (in *Ingress) move(ctx context.Context, target grid.Coordinate, source string) error {
	_, err := in.ctl.Move(ctx, target, source)
	return err
}

func (in *Ingress) report(env *Envelope, err error) {
	if err != nil {
		log.Printf("ingress: %s %s refused: %v", env.MsgType, env.MsgID, err)
	}
}
