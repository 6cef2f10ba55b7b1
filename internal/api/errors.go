package api

import (
	"errors"
	"net/http"

	"github.com/opencpa/ledgerpilot/internal/common"
)

// errorResponse is the uniform error body for every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

// statusForError maps pipeline errors onto HTTP status codes. Validation
// failures are the caller's fault; collaborator failures are upstream; the
// rest is on us.
func statusForError(err error) int {
	switch {
	case common.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, common.ErrChainConflict):
		return http.StatusConflict
	case isExternalServiceError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isExternalServiceError(err error) bool {
	var ese *common.ExternalServiceError
	return errors.As(err, &ese)
}

// userMessage picks the message exposed to clients. Internal errors get a
// generic body so database details never leak over the wire.
func userMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal error"
	}
	if status == http.StatusBadGateway {
		return "upstream service unavailable"
	}
	return err.Error()
}
