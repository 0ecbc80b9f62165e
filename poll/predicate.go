package poll

import "gridpatrol/agv"

// Predicate decides whether a snapshot ends the session.
type Predicate func(agv.Snapshot) bool

// Idle holds on the first snapshot that reports the device not busy.
func Idle() Predicate {
	return func(s agv.Snapshot) bool {
		return s.Err == nil && !s.Busy
	}
}

// TrackTask narrows Idle to a specific remote task. When taskID is empty
// the first task ID reported is adopted. The predicate holds when the
// device is idle and the tracked task is terminal, or when the device no
// longer reports the tracked task at all. A task whose state is unknown
// falls back to the busy flag.
func TrackTask(taskID string) Predicate {
	tracked := taskID
	return func(s agv.Snapshot) bool {
		if s.Err != nil {
			return false
		}
		if tracked == "" && s.TaskID != "" && s.Busy {
			tracked = s.TaskID
		}
		if s.Busy {
			return false
		}
		if tracked == "" || s.TaskID != tracked || s.TaskState == agv.TaskNone {
			return true
		}
		return s.TaskState.IsTerminal()
	}
}
