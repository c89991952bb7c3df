package httpx

import "net/http"

// BadRequest reports a client input problem.
func BadRequest(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusBadRequest, "Validation Failed", detail)
}

// NotFound reports a missing resource.
func NotFound(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusNotFound, "Not Found", detail)
}

// Conflict reports a uniqueness or state conflict.
func Conflict(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusConflict, "Duplicate", detail)
}

// Unprocessable reports input that parses but cannot be acted on.
func Unprocessable(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusUnprocessableEntity, "Computation Failed", detail)
}

// Internal reports an unexpected failure without leaking details.
func Internal(w http.ResponseWriter) {
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// Unavailable reports a dependency that is not ready to serve.
func Unavailable(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusServiceUnavailable, "Not Ready", detail)
}
