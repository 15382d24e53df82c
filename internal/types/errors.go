package types

import "errors"

// Domain specific errors shared by the handlers and services.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrUnavailable     = errors.New("temporarily unavailable")

	// ErrMissingCoordinates is returned when an operation needs a geolocated property.
	ErrMissingCoordinates = errors.New("property has no coordinates")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)
