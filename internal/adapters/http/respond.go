package httpadapter

import (
	"encoding/json"
	"net/http"

	"factline/internal/domain"
)

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to HTTP statuses. Callers always get a
// stable kind and message; no partial states leak out.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindInvalidSubmission:
		status = http.StatusUnprocessableEntity
	case domain.KindInvalidTransition, domain.KindTerminalState,
		domain.KindAlreadyResolved, domain.KindAlreadyQueued:
		status = http.StatusConflict
	case domain.KindItemNotFound, domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindUnavailable:
		status = http.StatusServiceUnavailable
	}
	var body errorBody
	if kind == "" {
		body.Error.Kind = "internal"
		body.Error.Message = "internal error"
	} else {
		body.Error.Kind = string(kind)
		body.Error.Message = err.Error()
	}
	writeJSON(w, status, body)
}
