package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// ErrTransport matches every *TransportError.
var ErrTransport = errors.New("transport failure")

// TransportError reports a request that never produced a server answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is lets callers test server errors against the model sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case model.ErrNotFound:
		return e.Code == "not_found" || (e.Code == "" && e.StatusCode == http.StatusNotFound)
	case model.ErrKindMismatch:
		return e.Code == "kind_mismatch" || (e.Code == "" && e.StatusCode == http.StatusUnprocessableEntity)
	case model.ErrStorage:
		return e.Code == "storage"
	}
	return false
}
