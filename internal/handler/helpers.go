package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/taskloop/authd/internal/model"
	"github.com/taskloop/authd/internal/service"
	"github.com/taskloop/authd/internal/store"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{Code: code, Message: message},
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// requestMeta extracts best-effort client provenance for the audit log.
// The RealIP middleware has already rewritten RemoteAddr from forwarding
// headers where applicable.
func requestMeta(r *http.Request) service.RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if ip == "" {
		ip = "unknown"
	}
	ua := r.UserAgent()
	if ua == "" {
		ua = "unknown"
	}
	return service.RequestMeta{IPAddress: ip, UserAgent: ua}
}

// validationError reports whether err is a pre-authentication input check.
// These are the only failures whose specifics are revealed to the caller.
func validationError(err error) bool {
	return errors.Is(err, service.ErrMissingFields) ||
		errors.Is(err, service.ErrMissingCredentials) ||
		errors.Is(err, service.ErrPasswordTooShort)
}

// mapError translates a service error into the HTTP taxonomy. conflictCode
// distinguishes the register surface (400 on a taken email) from the admin
// surface (409). Everything unclassified maps to a generic 500: the detail
// goes to the operator log, never to the response body.
func mapError(logger *slog.Logger, w http.ResponseWriter, err error, conflictCode int) {
	switch {
	case validationError(err):
		writeError(w, http.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, store.ErrEmailExists):
		writeError(w, conflictCode, "Email already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, store.ErrAdminProtected):
		writeError(w, http.StatusForbidden, "Cannot delete admin users")
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
