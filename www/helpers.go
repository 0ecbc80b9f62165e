package www

import (
	"encoding/json"
	"net/http"
	"strconv"

	"gridpatrol/agv"
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonStatus(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// commandError writes a refused command with a status matching its reason.
func (h *Handlers) commandError(w http.ResponseWriter, id string, err error) {
	reason, ok := agv.IsRejected(err)
	code := http.StatusBadGateway
	switch {
	case !ok:
		reason = "transport"
	case reason == agv.ReasonInvalid:
		code = http.StatusBadRequest
	case reason == agv.ReasonBusy, reason == agv.ReasonPatrol, reason == agv.ReasonPoll:
		code = http.StatusConflict
	}
	body := map[string]string{"error": err.Error(), "reason": reason}
	if id != "" {
		body["command_id"] = id
	}
	h.jsonStatus(w, body, code)
}

// queryLimit reads ?limit=, falling back to def.
func queryLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return def
}
