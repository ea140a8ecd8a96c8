package middleware

import (
	"encoding/json"
	"net/http"
)

type ctxKey string

const (
	ctxCorrelationID ctxKey = "correlation_id"
	ctxSessionID     ctxKey = "session_id"
	ctxAdminSubject  ctxKey = "admin_subject"
)

// ErrorResponse is the JSON body of every error the service returns.
type ErrorResponse struct {
	Error         string            `json:"error"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	ProductIDs    []string          `json:"productIds,omitempty"`
}

// WriteError writes msg as an ErrorResponse with the request's correlation id.
func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	WriteErrorBody(w, status, ErrorResponse{
		Error:         msg,
		CorrelationID: CorrelationIDFromContext(r.Context()),
	})
}

func WriteErrorBody(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
