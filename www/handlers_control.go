package www

import (
	"encoding/json"
	"net/http"

	"gridpatrol/grid"
)

type moveRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type patrolRequest struct {
	Rounds int `json:"rounds"`
}

func (h *Handlers) source(r *http.Request) string {
	if u := h.getUsername(r); u != "" {
		return "web:" + u
	}
	return "web"
}

func (h *Handlers) apiMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id, err := h.engine.Move(r.Context(), grid.Cell(req.X, req.Y), h.source(r))
	if err != nil {
		h.commandError(w, id, err)
		return
	}
	h.jsonStatus(w, map[string]string{"command_id": id}, http.StatusAccepted)
}

func (h *Handlers) apiHome(w http.ResponseWriter, r *http.Request) {
	id, err := h.engine.Move(r.Context(), grid.Home, h.source(r))
	if err != nil {
		h.commandError(w, id, err)
		return
	}
	h.jsonStatus(w, map[string]string{"command_id": id}, http.StatusAccepted)
}

func (h *Handlers) apiStartPatrol(w http.ResponseWriter, r *http.Request) {
	req := patrolRequest{Rounds: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	id, err := h.engine.StartPatrol(req.Rounds, h.source(r))
	if err != nil {
		h.commandError(w, "", err)
		return
	}
	h.jsonStatus(w, map[string]string{"patrol_id": id}, http.StatusAccepted)
}

func (h *Handlers) apiStopPatrol(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, map[string]bool{"stopped": h.engine.StopPatrol()})
}

// apiStopPolling ends local observation of the in-flight command. The
// device keeps executing it.
func (h *Handlers) apiStopPolling(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, map[string]bool{"stopped": h.engine.Dispatcher().StopPolling()})
}
