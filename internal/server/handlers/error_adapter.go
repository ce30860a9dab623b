package handlers

import (
	"net/http"

	"github.com/3leaps/jobqueue/internal/apperrors"
)

// httpErrorResponder is the function invoked by respondWithError. It is a
// package variable so tests can substitute a spy and restore the default
// afterwards with ResetHTTPErrorResponder.
var httpErrorResponder = defaultHTTPErrorResponder

func defaultHTTPErrorResponder(w http.ResponseWriter, _ *http.Request, err error) {
	apperrors.RespondWithError(w, err)
}

// SetHTTPErrorResponder overrides how handler errors are rendered. Passing
// nil restores the default responder.
func SetHTTPErrorResponder(fn func(w http.ResponseWriter, r *http.Request, err error)) {
	if fn == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = fn
}

// ResetHTTPErrorResponder restores the default error responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = defaultHTTPErrorResponder
}

// respondWithError is the single call site every handler in this package
// uses to report a failure.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
