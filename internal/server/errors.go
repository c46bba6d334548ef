package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dshills/contractengine/internal/llm"
	"github.com/dshills/contractengine/internal/schema"
)

// StatusClientClosedRequest is reported when the caller went away before
// the analysis finished.
const StatusClientClosedRequest = 499

type apiError struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason,omitempty"`
	Path      string `json:"path,omitempty"`
	Value     string `json:"value,omitempty"`
	RequestID string `json:"request_id"`
}

// analysisError maps an Engine error to an HTTP status and body. The three
// failure kinds keep distinct statuses and messages.
func analysisError(err error) (int, apiError) {
	body := apiError{Kind: llm.Outcome(err)}

	var te *llm.TransportError
	var de *llm.DecodeError
	var ve *schema.ValidationError
	switch {
	case errors.Is(err, llm.ErrEmptyContract):
		body.Error = "contract_text is empty"
		return http.StatusBadRequest, body
	case errors.As(err, &te):
		body.Reason = string(te.Kind)
		if te.Kind == llm.KindCanceled {
			body.Error = "request canceled"
			return StatusClientClosedRequest, body
		}
		body.Error = "analysis service unavailable"
		return http.StatusServiceUnavailable, body
	case errors.As(err, &de):
		body.Error = "analysis could not be parsed"
		return http.StatusBadGateway, body
	case errors.As(err, &ve):
		body.Error = fmt.Sprintf("unexpected response shape: %v", ve.Reason)
		body.Path = ve.Path
		body.Value = ve.Received()
		return http.StatusBadGateway, body
	default:
		body.Error = "internal server error"
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body apiError) {
	body.RequestID = RequestIDFrom(r.Context())
	writeJSON(w, status, body)
}
