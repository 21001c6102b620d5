package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Maker-checker and state machine violations. All of them are validation failures.
var (
	ErrSelfApproval         = fmt.Errorf("%w: certificate request cannot be approved by the same user who created it", ErrInvalidInput)
	ErrSelfRejection        = fmt.Errorf("%w: certificate request cannot be rejected by the same user who created it", ErrInvalidInput)
	ErrInvalidTransition    = fmt.Errorf("%w: certificate request is not in a state that allows this operation", ErrInvalidInput)
	ErrDuplicateParticipant = fmt.Errorf("%w: bulk approval requires all participants to be unique", ErrInvalidInput)
	ErrApprovedRequest      = fmt.Errorf("%w: certificate request carries an approval decision and cannot be deleted", ErrInvalidInput)
	ErrInvalidParticipantID = fmt.Errorf("%w: participant id allows only alphanumerical, hyphen and underscore (3-30 chars)", ErrInvalidInput)
	ErrInvalidRequestID     = fmt.Errorf("%w: malformed certificate request id", ErrInvalidInput)
	ErrEmptyBatch           = fmt.Errorf("%w: at least one certificate id is required", ErrInvalidInput)
)
