// Package apperrors defines the daemon's error taxonomy and a
// classifier (HTTPStatus) that maps any error onto an HTTP status.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrConflict is returned when a requested transition or creation
// violates the state machine or duplicates an existing registration.
var ErrConflict = errors.New("conflict")

// ErrUnauthorized is returned when a caller fails authentication.
var ErrUnauthorized = errors.New("unauthorized")

// NotFoundError wraps a missing-server lookup with its UUID.
type NotFoundError struct {
	UUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("server %s not found", e.UUID)
}

// DockerError wraps a container-engine failure with the operation that
// triggered it.
type DockerError struct {
	Op  string
	Err error
}

func (e *DockerError) Error() string {
	return fmt.Sprintf("docker %s: %v", e.Op, e.Err)
}

func (e *DockerError) Unwrap() error { return e.Err }

// RemoteError wraps an unexpected panel response status.
type RemoteError struct {
	Status int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("panel responded with unexpected status %d", e.Status)
}

// IOError wraps a local filesystem failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ConfigError marks a fatal bootstrap/configuration failure.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// HTTPStatus classifies err into the HTTP status the §6 surface should
// respond with. Unrecognized errors map to 500.
func HTTPStatus(err error) int {
	var notFound *NotFoundError
	var dockerErr *DockerError
	var remoteErr *RemoteError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &dockerErr):
		return http.StatusInternalServerError
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
