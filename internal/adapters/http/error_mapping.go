package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

const (
	codeValidation          = "VALIDATION_ERROR"
	codeSourceUnavailable   = "SOURCE_UNAVAILABLE"
	codePolicyBlocked       = "POLICY_BLOCKED"
	codeArtifactUnavailable = "ARTIFACT_UNAVAILABLE"
	codeUnreadablePayload   = "UNREADABLE_PAYLOAD"
	codeTemporary           = "TEMPORARY"
	codeRateLimited         = "RATE_LIMITED"
	codeNotFound            = "NOT_FOUND"
	codeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	codeInternal            = "INTERNAL"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func mapError(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrValidation), domain.IsKind(err, domain.ErrUnknownProfile):
		return http.StatusBadRequest, codeValidation
	case domain.IsKind(err, domain.ErrMatterNotFound):
		return http.StatusNotFound, codeSourceUnavailable
	case domain.IsKind(err, domain.ErrPolicyBlocked):
		return http.StatusConflict, codePolicyBlocked
	case domain.IsKind(err, domain.ErrArtifactUnavailable):
		return http.StatusConflict, codeArtifactUnavailable
	case domain.IsKind(err, domain.ErrUnreadablePayload):
		return http.StatusUnprocessableEntity, codeUnreadablePayload
	case domain.IsKind(err, domain.ErrTemporary), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, codeTemporary
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// fail writes the error envelope for err. Internal failures are logged and
// their detail is withheld from the caller.
func (rt *Router) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal error"
	}
	writeError(w, r, status, code, message)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: requestIDFromContext(r.Context()),
	}})
}
