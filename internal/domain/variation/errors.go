package variation

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Variation Errors
// ---------------------------------------------------------------------------

var (
	// Configuration errors
	ErrConfiguration = errors.New("variation: invalid configuration")
	ErrInvalidTheme  = errors.New("variation: invalid variation theme")

	// Provider errors
	ErrProductNotFound         = errors.New("variation: product not found")
	ErrProviderUnavailable     = errors.New("variation: provider temporarily unavailable")
	ErrProviderRequestFailed   = errors.New("variation: provider request failed")
	ErrProviderInvalidResponse = errors.New("variation: invalid provider response")
	ErrProviderAuthFailed      = errors.New("variation: provider authentication failed")
	ErrRateLimited             = errors.New("variation: provider rate limited")

	// Family errors
	ErrFamilyNotFound     = errors.New("variation: family not found")
	ErrFamilyInvalid      = errors.New("variation: invalid family")
	ErrFamilyNotSyncable  = errors.New("variation: family is not eligible for sync")
	ErrSubmissionNotFound = errors.New("variation: feed submission not found")

	// Feed errors
	ErrInvalidFeedTransition = errors.New("variation: invalid feed status transition")
	ErrPublishFailed         = errors.New("variation: feed publish failed")
	ErrFeedFatal             = errors.New("variation: feed processing failed")
	ErrFeedRejected          = errors.New("variation: feed report contains errors")
	ErrFeedTimeout           = errors.New("variation: feed did not complete in time")
)

// ConfigurationError reports an operator or setup mistake detected before any
// external call is made.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError creates a ConfigurationError for the given field.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) match any ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
