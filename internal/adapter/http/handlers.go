package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/habitquest/delegate/internal/domain/delegation"
	"github.com/habitquest/delegate/internal/port/executor"
	"github.com/habitquest/delegate/internal/port/history"
	"github.com/habitquest/delegate/internal/port/seedstore"
	"github.com/habitquest/delegate/internal/service"
)

// Handlers bundles the HTTP endpoints' dependencies.
type Handlers struct {
	Engine   *service.Engine
	Seeds    seedstore.Store
	History  history.Store
	Registry *executor.Registry
	Invoker  *service.Invoker
}

type delegateRequest struct {
	TaskNote         string            `json:"task_note"`
	Context          map[string]string `json:"context,omitempty"`
	ExecutorTypeHint string            `json:"executor_type_hint,omitempty"`
	FromAgentType    string            `json:"from_agent_type,omitempty"`
	Priority         string            `json:"priority,omitempty"`
	TimeoutMs        int64             `json:"timeout_ms,omitempty"`
}

// Delegate handles POST /api/v1/delegations.
func (h *Handlers) Delegate(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[delegateRequest](w, r)
	if !ok {
		return
	}
	if body.TaskNote == "" {
		writeError(w, http.StatusBadRequest, "task_note is required")
		return
	}

	req := &delegation.DelegationRequest{
		TaskNote:         body.TaskNote,
		ContextHints:     body.Context,
		ExecutorTypeHint: body.ExecutorTypeHint,
		FromAgentType:    body.FromAgentType,
		Priority:         delegation.Priority(body.Priority),
		Timeout:          time.Duration(body.TimeoutMs) * time.Millisecond,
	}

	result, err := h.Engine.Delegate(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case result != nil && result.Status == delegation.StatusParseError:
		// The result carries the actionable reason; the note is the
		// caller's to refine.
		writeJSON(w, http.StatusUnprocessableEntity, result)
	case errors.Is(err, delegation.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		var dispatchErr *delegation.DispatchError
		if errors.As(err, &dispatchErr) {
			writeError(w, http.StatusInternalServerError, dispatchErr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// SignatureHistory handles GET /api/v1/history/{signature}.
func (h *Handlers) SignatureHistory(w http.ResponseWriter, r *http.Request) {
	sig := delegation.Signature(chi.URLParam(r, "signature"))
	records, err := h.History.Recent(r.Context(), sig, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signature": sig, "records": records})
}

// RecentHistory handles GET /api/v1/history.
func (h *Handlers) RecentHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.History.RecentAll(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// SeedRecord handles GET /api/v1/seeds/{signature}.
func (h *Handlers) SeedRecord(w http.ResponseWriter, r *http.Request) {
	sig := delegation.Signature(chi.URLParam(r, "signature"))
	rec, err := h.Seeds.Snapshot(r.Context(), sig)
	if err != nil {
		if errors.Is(err, delegation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no seed record for signature")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	best, _ := rec.Best()
	writeJSON(w, http.StatusOK, map[string]any{
		"signature":  rec.Signature,
		"candidates": rec.Candidates,
		"best_seed":  best,
	})
}

// Executors handles GET /api/v1/executors.
func (h *Handlers) Executors(w http.ResponseWriter, r *http.Request) {
	type executorInfo struct {
		Type         string   `json:"type"`
		Capabilities []string `json:"capabilities"`
		Version      string   `json:"version"`
		Breaker      string   `json:"breaker,omitempty"`
	}

	states := h.Invoker.BreakerStates()
	var out []executorInfo
	for _, e := range h.Registry.All() {
		out = append(out, executorInfo{
			Type:         e.Type(),
			Capabilities: e.Capabilities(),
			Version:      e.Version(),
			Breaker:      string(states[e.Type()]),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"executors": out})
}
