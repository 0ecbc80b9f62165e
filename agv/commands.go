package agv

import (
	"context"
	"net/http"

	"gridpatrol/grid"
)

// Click sends a move to cell (x, y). A non-2xx reply or ok:false comes back
// as a *RejectedError.
func (c *Client) Click(ctx context.Context, x, y int) (*ClickAck, error) {
	var ack ClickAck
	status, err := c.post(ctx, "/click", &clickRequest{X: x, Y: y}, &ack)
	if err != nil {
		return nil, err
	}
	if err := checkAck(status, ack.OK, ack.Busy, ack.Error); err != nil {
		return &ack, err
	}
	return &ack, nil
}

// Home sends the device to its home position.
func (c *Client) Home(ctx context.Context) (*Ack, error) {
	var ack Ack
	status, err := c.post(ctx, "/agv/home", nil, &ack)
	if err != nil {
		return nil, err
	}
	if err := checkAck(status, ack.OK, ack.Busy, ack.Error); err != nil {
		return &ack, err
	}
	return &ack, nil
}

// Capture asks the device to take an image tagged with target.
func (c *Client) Capture(ctx context.Context, target grid.Coordinate) (*CaptureResult, error) {
	var res CaptureResult
	status, err := c.post(ctx, "/capture", target, &res)
	if err != nil {
		return nil, err
	}
	if err := checkAck(status, res.OK, false, res.Error); err != nil {
		return &res, err
	}
	return &res, nil
}

func checkAck(status int, ok, busy bool, detail string) error {
	if busy || status == http.StatusConflict {
		if detail == "" {
			detail = "device is moving"
		}
		return &RejectedError{Reason: ReasonBusy, Detail: detail}
	}
	if status < 200 || status > 299 {
		if detail == "" {
			detail = http.StatusText(status)
		}
		return Reject(ReasonRemote, "HTTP %d: %s", status, detail)
	}
	if !ok {
		if detail == "" {
			detail = "device returned ok=false"
		}
		return &RejectedError{Reason: ReasonRemote, Detail: detail}
	}
	return nil
}
