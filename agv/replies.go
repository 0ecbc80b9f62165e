package agv

// ReplyClass describes a device reply code.
type ReplyClass struct {
	Type string `json:"type"` // "success", "error" or "info"
	Text string `json:"text"`
}

var replyClasses = map[string]ReplyClass{
	"DONE":         {"success", "Movement completed."},
	"HOME_OK":      {"success", "Homing completed successfully."},
	"RESTART_OK":   {"success", "Controller restarted successfully."},
	"ERROR_HOME":   {"error", "Homing failed."},
	"ERROR_REPEAT": {"error", "Repeated/duplicate command ignored."},
	"ERROR_DRIVER": {"error", "Motor driver fault."},
	"ERROR_INPOS":  {"error", "Position not reached / in-position error."},
	"NOT_HOME_OK":  {"error", "Not at HOME (reported as OK)."},
}

// ClassifyReply maps a device reply code. Unknown codes are "info" with the
// code itself as text.
func ClassifyReply(code string) ReplyClass {
	if c, ok := replyClasses[code]; ok {
		return c
	}
	return ReplyClass{Type: "info", Text: code}
}

// DescribeReply expands known reply codes into readable text.
func DescribeReply(msg string) string {
	if c, ok := replyClasses[msg]; ok {
		return msg + ": " + c.Text
	}
	return msg
}

// IsErrorReply reports whether code is a known error reply.
func IsErrorReply(code string) bool {
	return ClassifyReply(code).Type == "error"
}
