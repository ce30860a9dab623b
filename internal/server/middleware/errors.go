package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	gfmerrors "github.com/fulmenhq/gofulmen/errors"
)

// ErrorBody is the JSON shape of the "error" key in every error response.
type ErrorBody struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse is the full JSON body written for any non-2xx response
// produced by this middleware.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Recovery catches panics from downstream handlers and turns them into a
// JSON 500 response instead of a crashed connection, following the
// teacher's internal/server/middleware.Recovery contract. ErrorHandler is
// an alias kept for callers that wire the chain by that name.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				envelope := gfmerrors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", rec))
				if id := RequestIDFromContext(r.Context()); id != "" {
					envelope = envelope.WithCorrelationID(id)
				}
				writeErrorResponse(w, envelope, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is the same middleware as Recovery under the name the
// teacher's route-wiring code reaches for.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

// writeErrorResponse renders envelope as the standard ErrorResponse JSON
// body at the given HTTP status. It is the single place that translates a
// gofulmen error envelope into the wire format clients see.
func writeErrorResponse(w http.ResponseWriter, envelope *gfmerrors.ErrorEnvelope, statusCode int) {
	body := ErrorResponse{Error: ErrorBody{
		Code:      envelope.Code(),
		Message:   envelope.Message(),
		RequestID: envelope.CorrelationID(),
		Details:   envelope.Context(),
	}}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
