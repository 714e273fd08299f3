package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/giantswarm/fedctl/internal/engine"
	"github.com/giantswarm/fedctl/internal/errkind"
	"github.com/giantswarm/fedctl/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeEngineError maps an error returned by the Engine/Store to an
// HTTP status, using errkind where the error carries one (spec §7
// "stable error-kind tag") and falling back to well-known sentinels
// otherwise.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, engine.ErrAlreadyTerminal):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}

	kind := errkind.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case errkind.Invalid:
		status = http.StatusBadRequest
	case errkind.NoProvider, errkind.Overloaded, errkind.Transient, errkind.Timeout:
		status = http.StatusServiceUnavailable
	case errkind.Cancelled:
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(kind)})
}
