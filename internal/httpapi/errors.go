package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/crystaldolphin/mcpchat/internal/schema"
)

type apiError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorStatus maps a classified failure to its HTTP status and title.
func errorStatus(err error) (int, string) {
	switch schema.KindOf(err) {
	case schema.KindValidation:
		return http.StatusBadRequest, "Validation Error"
	case schema.KindAuth:
		return http.StatusUnauthorized, "Authentication Error"
	case schema.KindRateLimited:
		return http.StatusTooManyRequests, "Rate Limit Exceeded"
	case schema.KindQuotaExceeded:
		return http.StatusTooManyRequests, "Quota Exceeded"
	case schema.KindTimeout:
		return http.StatusGatewayTimeout, "Timeout"
	case schema.KindToolProvider:
		return http.StatusServiceUnavailable, "Tool Provider Unavailable"
	case schema.KindWhitelist, schema.KindHostLimit:
		return http.StatusForbidden, "Whitelist Violation"
	case schema.KindUnknownProvider, schema.KindModelUnavailable, schema.KindProvider:
		return http.StatusBadRequest, "Provider Error"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, title := errorStatus(err)
	writeJSON(w, status, apiError{Error: title, Message: err.Error()})
}
