package collab

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers match with errors.Is; the wrapped message carries
// the detail shown to the user.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotAMember       = errors.New("not a member of this space")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrVersionConflict  = errors.New("version conflict")
	ErrStorage          = errors.New("storage failure")
)

var domainErrors = []error{
	ErrNotAuthenticated,
	ErrNotAMember,
	ErrPermissionDenied,
	ErrNotFound,
	ErrValidation,
	ErrVersionConflict,
	ErrStorage,
}

// isDomainError reports whether err already carries one of the sentinels.
func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrapErr annotates err with the action that failed. Errors that do not
// carry a sentinel come from the persistence layer and become ErrStorage.
func wrapErr(action string, err error) error {
	if isDomainError(err) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%s: %w: %w", action, ErrStorage, err)
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
