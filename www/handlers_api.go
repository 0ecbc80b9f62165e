package www

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) apiStatus(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Status())
}

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	deviceOK := true
	var deviceErr string
	if _, err := h.engine.Ping(ctx); err != nil {
		deviceOK = false
		deviceErr = err.Error()
	}
	messagingOK := false
	if mc := h.engine.MsgClient(); mc != nil {
		messagingOK = mc.IsConnected()
	}
	h.jsonOK(w, map[string]any{
		"status":       "ok",
		"device":       deviceOK,
		"device_error": deviceErr,
		"messaging":    messagingOK,
		"sse_clients":  h.eventHub.ClientCount(),
	})
}

func (h *Handlers) apiListCommands(w http.ResponseWriter, r *http.Request) {
	cmds, err := h.engine.DB().ListCommands(queryLimit(r, 100))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, cmds)
}

func (h *Handlers) apiGetCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.engine.DB().GetCommand(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, cmd)
}

func (h *Handlers) apiListCaptures(w http.ResponseWriter, r *http.Request) {
	caps, err := h.engine.DB().ListCaptures(queryLimit(r, 100))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, caps)
}

func (h *Handlers) apiListPatrols(w http.ResponseWriter, r *http.Request) {
	patrols, err := h.engine.DB().ListPatrols(queryLimit(r, 50))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, patrols)
}

func (h *Handlers) apiGetPatrol(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.DB().GetPatrol(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, p)
}

func (h *Handlers) apiPatrolProgress(w http.ResponseWriter, r *http.Request) {
	seq := h.engine.Sequencer()
	resp := map[string]any{"running": seq.Running()}
	if p, ok := seq.Progress(); ok {
		resp["progress"] = p
	}
	if rep, ok := seq.LastReport(); ok {
		resp["last"] = rep
	}
	h.jsonOK(w, resp)
}

func (h *Handlers) apiAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.DB().ListAuditLog(queryLimit(r, 100))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, entries)
}
