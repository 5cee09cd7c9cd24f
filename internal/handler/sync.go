package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/binshadcs/settle-up/internal/cloudsync"
	"github.com/binshadcs/settle-up/internal/remotestore"
)

// SyncHandler exposes the cloud sync lifecycle: bind/unbind an account,
// force push/pull, and the diagnostics the UI renders.
type SyncHandler struct {
	mgr    *cloudsync.Manager
	logger *slog.Logger
}

func NewSyncHandler(mgr *cloudsync.Manager, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{mgr: mgr, logger: logger}
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.Status())
}

type bindRequest struct {
	AccountID string `json:"account_id"`
}

// Bind sets the signed-in account and runs reconciliation. An empty
// account_id unbinds and returns to local-only mode.
func (h *SyncHandler) Bind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.mgr.Bind(r.Context(), req.AccountID); err != nil {
		// Local data is intact either way; the status payload carries the
		// error for the UI.
		writeJSON(w, syncErrorStatus(err), h.mgr.Status())
		return
	}
	writeJSON(w, http.StatusOK, h.mgr.Status())
}

func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.PushNow(r.Context()); err != nil {
		writeJSON(w, syncErrorStatus(err), h.mgr.Status())
		return
	}
	writeJSON(w, http.StatusOK, h.mgr.Status())
}

func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	found, err := h.mgr.PullNow(r.Context())
	if err != nil {
		writeJSON(w, syncErrorStatus(err), h.mgr.Status())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":  found,
		"status": h.mgr.Status(),
	})
}

// syncErrorStatus distinguishes the configuration failure (missing remote
// table, operator action needed) from transient I/O failures.
func syncErrorStatus(err error) int {
	if errors.Is(err, remotestore.ErrTableMissing) {
		return http.StatusNotImplemented
	}
	return http.StatusBadGateway
}
