package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/httputil"
	"github.com/platinummonkey/cantor/pkg/observability"
)

// statusFor maps an auth error kind to its HTTP status
func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindAuthentication:
		return http.StatusUnauthorized
	case auth.KindAuthorization:
		return http.StatusForbidden
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a JSON error body. Internal errors are logged
// with their cause and reach the client only as a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteInternalError(w)
		return
	}

	var authErr *auth.Error
	message := http.StatusText(status)
	if errors.As(err, &authErr) && authErr.Message != "" {
		message = authErr.Message
	}
	httputil.WriteErrorMessage(w, status, message)
}
