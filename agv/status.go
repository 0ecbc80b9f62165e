package agv

import (
	"context"
	"log"
	"time"
)

// FetchStatus reads the status summary and normalizes it into a Snapshot.
func (c *Client) FetchStatus(ctx context.Context) (Snapshot, error) {
	var resp statusSummaryResponse
	if err := c.get(ctx, "/status-summary", &resp); err != nil {
		return Snapshot{}, err
	}
	return normalize(&resp, time.Now())
}

func normalize(resp *statusSummaryResponse, at time.Time) (Snapshot, error) {
	if resp.SystemBusy == nil {
		return Snapshot{}, &ProtocolError{Field: "system_busy"}
	}
	snap := Snapshot{Busy: *resp.SystemBusy, At: at}
	if resp.Details != nil {
		snap.Message = DescribeReply(resp.Details.Message)
	}
	if rs := resp.RawStatus; rs != nil {
		snap.LocationTag = rawString(rs.Location)
		if t := rs.Task; t != nil {
			snap.TaskID = rawString(t.TaskNumber)
			if snap.TaskID == "" {
				return Snapshot{}, &ProtocolError{Field: "agv_raw_status.task.taskNumber"}
			}
			// An unrecognized task status leaves TaskState empty; busy and
			// location are still authoritative.
			if state, ok := ParseTaskState(t.Status); ok {
				snap.TaskState = state
			} else {
				log.Printf("agv: task %s has unknown status %q", snap.TaskID, t.Status)
			}
			snap.TargetTag = rawString(t.TargetTag)
		}
	}
	return snap, nil
}
