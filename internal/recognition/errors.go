package recognition

import (
	"errors"
	"fmt"
)

// Business-rule failures. They are caused by the request and can be fixed by the caller.
var (
	ErrInvalidImage          = errors.New("invalid image")
	ErrIdentityNotFound      = errors.New("identity not found")
	ErrFaceNotFound          = errors.New("face record not found")
	ErrNoFaceDetected        = errors.New("no face detected in the uploaded image")
	ErrMultipleFacesDetected = errors.New("multiple faces detected, enrollment requires exactly one face per image")
)

// ErrInfrastructure marks failures of the repository, storage or inference backend.
var ErrInfrastructure = errors.New("infrastructure failure")

// infraError wraps err as an infrastructure failure while keeping it inspectable.
func infraError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}

// IsClientError reports whether err is a business-rule failure rather than an infrastructure one.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidImage) ||
		errors.Is(err, ErrIdentityNotFound) ||
		errors.Is(err, ErrFaceNotFound) ||
		errors.Is(err, ErrNoFaceDetected) ||
		errors.Is(err, ErrMultipleFacesDetected)
}
