package httpx

import (
	"errors"
	"net/http"

	"github.com/atriumhq/atrium/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Authorization denials are intentionally undifferentiated: the body never
// names the permission or membership state that caused them.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateName):
		Problem(w, http.StatusConflict, "Duplicate Name", err.Error())
	case errors.Is(err, shared.ErrAlreadyMember):
		Problem(w, http.StatusConflict, "Already a Member", err.Error())
	case errors.Is(err, shared.ErrInviteeOptOut):
		Problem(w, http.StatusConflict, "Invitations Disabled", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusBadRequest, "Invalid Credentials", "")
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
