package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vouchd/internal/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps domain sentinels onto HTTP statuses. The two anti-gaming
// rejections get their own codes so callers can distinguish "you cannot
// grade yourself" from "you already graded this agent here".
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorizedActor):
		status, code = http.StatusForbidden, "UNAUTHORIZED_ACTOR"
	case errors.Is(err, domain.ErrStateConflict):
		status, code = http.StatusConflict, "STATE_CONFLICT"
	case errors.Is(err, domain.ErrSelfAttestation):
		status, code = http.StatusUnprocessableEntity, "SELF_ATTESTATION"
	case errors.Is(err, domain.ErrDuplicateAttestation):
		status, code = http.StatusUnprocessableEntity, "DUPLICATE_ATTESTATION"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusUnprocessableEntity, "POLICY_DENIED"
	case errors.Is(err, domain.ErrUnresolvableIssuer):
		status, code = http.StatusBadRequest, "UNRESOLVABLE_ISSUER"
	case errors.Is(err, domain.ErrSignatureInvalid):
		status, code = http.StatusBadRequest, "SIGNATURE_INVALID"
	case errors.Is(err, domain.ErrCredentialExpired):
		status, code = http.StatusBadRequest, "CREDENTIAL_EXPIRED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// verificationCode names the rule a credential verification failed on.
func verificationCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnresolvableIssuer):
		return "UNRESOLVABLE_ISSUER"
	case errors.Is(err, domain.ErrSignatureInvalid):
		return "SIGNATURE_INVALID"
	case errors.Is(err, domain.ErrCredentialExpired):
		return "CREDENTIAL_EXPIRED"
	case errors.Is(err, domain.ErrValidation):
		return "VALIDATION"
	default:
		return "INTERNAL"
	}
}
