package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

// errorResponse is the uniform error body of the REST surface
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Printf("Warning: encoding HTTP response: %v\n", err)
	}
}

// writeError maps domain errors onto HTTP status codes: validation
// failures are the caller's fault, unknown ids are 404, lock contention
// is a conflict, a missing route is unprocessable, the rest is on us.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var validation *shared.ValidationError
	var unknownVehicle *shared.UnknownVehicleError
	var unknownTask *shared.UnknownTaskError
	var noPath *shared.NoPathError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &unknownVehicle), errors.As(err, &unknownTask):
		status = http.StatusNotFound
	case shared.IsLockHeld(err):
		status = http.StatusConflict
	case errors.As(err, &noPath):
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeBody parses a JSON request body into dst. An empty body is
// allowed when dst handling tolerates zero values.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return shared.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}
