package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"academy/internal/core"
	applog "academy/internal/log"
)

const genericError = "Something went wrong, nothing was saved. Please try again."

// JSONResponse builds the body answered to XHR form posts.
type JSONResponse struct {
	statusCode int
	body       map[string]any
}

func NewJSONResponse() *JSONResponse {
	return &JSONResponse{statusCode: http.StatusOK, body: map[string]any{"ok": true}}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	b.body["ok"] = code < 400
	return b
}

func (b *JSONResponse) Set(key string, value any) *JSONResponse {
	b.body[key] = value
	return b
}

func (b *JSONResponse) Error(message string) *JSONResponse {
	return b.Set("error", message)
}

func (b *JSONResponse) Write(w http.ResponseWriter) {
	writeJSON(w, b.statusCode, b.body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// userMessage maps an error to what the operator sees. Store and other
// unexpected errors are logged and replaced by a generic message.
func (s *Server) userMessage(r *http.Request, err error, op string) (string, int) {
	switch {
	case core.IsValidation(err):
		return err.Error(), http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return "That record no longer exists.", http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return "That record already exists.", http.StatusConflict
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogRequestError(r.Context(), r, op, err)
	return genericError, http.StatusInternalServerError
}

// redirectResult flashes the outcome of a form post and redirects back.
func (s *Server) redirectResult(w http.ResponseWriter, r *http.Request, target, op string, err error, success string) {
	switch {
	case err == nil:
		if success != "" {
			s.flash(w, flashSuccess, success)
		}
	case errors.Is(err, core.ErrNotFound):
		s.flash(w, flashInfo, "That record no longer exists, nothing was changed.")
	default:
		msg, _ := s.userMessage(r, err, op)
		s.flash(w, flashError, msg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
