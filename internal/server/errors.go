package server

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// Error codes carried in HTTP error bodies.
const (
	CodeNotFound     = "not_found"
	CodeKindMismatch = "kind_mismatch"
	CodeInvalid      = "invalid"
	CodeStorage      = "storage"
	CodeInternal     = "internal"
)

// classify maps a service error to its HTTP status and body code.
func classify(err error) (int, string) {
	var ie inputError
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ie), errors.As(err, &ve):
		return http.StatusBadRequest, CodeInvalid
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, model.ErrKindMismatch):
		return http.StatusUnprocessableEntity, CodeKindMismatch
	case errors.Is(err, model.ErrStorage):
		return http.StatusInternalServerError, CodeStorage
	}
	return http.StatusInternalServerError, CodeInternal
}

// grpcError converts a service error into a gRPC status error.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch _, c := classify(err); c {
	case CodeInvalid:
		code = codes.InvalidArgument
	case CodeNotFound:
		code = codes.NotFound
	case CodeKindMismatch:
		code = codes.FailedPrecondition
	}
	return status.Error(code, err.Error())
}
