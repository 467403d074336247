package handlers

import (
	"net/http"
	"sync/atomic"

	apperrors "github.com/namelens/relay/internal/errors"
)

// ErrorResponder writes err as an HTTP error response.
type ErrorResponder func(http.ResponseWriter, *http.Request, error)

var errorResponder atomic.Value

// SetHTTPErrorResponder swaps the responder used by every handler in this
// package. nil restores apperrors.RespondWithError.
func SetHTTPErrorResponder(responder ErrorResponder) {
	if responder == nil {
		responder = apperrors.RespondWithError
	}
	errorResponder.Store(responder)
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if responder, ok := errorResponder.Load().(ErrorResponder); ok {
		responder(w, r, err)
		return
	}
	apperrors.RespondWithError(w, r, err)
}
