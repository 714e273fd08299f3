package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/giantswarm/fedctl/internal/workflow"
)

// submitRequest is the body of POST /v1/workflows.
type submitRequest struct {
	Tenant       string `json:"tenant" validate:"required"`
	Intent       string `json:"intent" validate:"required"`
	WorkflowType string `json:"workflow_type,omitempty"`
}

type submitResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.limiters.Allow(req.Tenant) {
		writeError(w, http.StatusTooManyRequests, "tenant request rate exceeded")
		return
	}

	id, err := s.engine.Submit(r.Context(), req.Tenant, req.Intent, req.WorkflowType)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{WorkflowID: id.String(), Status: "created"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := workflow.ID(r.PathValue("id"))
	view, err := s.engine.Status(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := workflow.ID(r.PathValue("id"))
	if err := s.engine.Cancel(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
