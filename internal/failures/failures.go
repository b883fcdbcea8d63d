package failures

import (
	"errors"
	"fmt"
	"strings"
)

const (
	unknownErrorMessageConstant        = "an unknown error occurred"
	errorWithComponentTemplateConstant = "%s: %s"
)

// Kind classifies a normalized failure.
type Kind string

// Supported failure kinds.
const (
	KindValidation    Kind = Kind("VALIDATION_ERROR")
	KindAPI           Kind = Kind("API_ERROR")
	KindConfiguration Kind = Kind("CONFIG_ERROR")
	KindUnknown       Kind = Kind("UNKNOWN_ERROR")
)

// Error is the normalized failure surfaced across component boundaries.
type Error struct {
	Kind         Kind
	Component    string
	Message      string
	StatusCode   int
	ResponseBody string
	Cause        error
}

// Error returns the preserved failure message.
func (failure Error) Error() string {
	if len(failure.Message) == 0 {
		if failure.Cause != nil {
			return failure.Cause.Error()
		}
		return unknownErrorMessageConstant
	}
	return failure.Message
}

// Unwrap exposes the original cause.
func (failure Error) Unwrap() error {
	return failure.Cause
}

// Describe renders the failure prefixed with its component tag.
func (failure Error) Describe() string {
	if len(failure.Component) == 0 {
		return failure.Error()
	}
	return fmt.Sprintf(errorWithComponentTemplateConstant, failure.Component, failure.Error())
}

// NewValidationError reports malformed input detected before any network call.
func NewValidationError(component string, message string) Error {
	return Error{Kind: KindValidation, Component: component, Message: message}
}

// NewConfigurationError reports missing or invalid environment-level settings.
func NewConfigurationError(component string, message string) Error {
	return Error{Kind: KindConfiguration, Component: component, Message: message}
}

// NewAPIError reports a non-2xx response or a transport failure.
func NewAPIError(component string, message string, statusCode int, responseBody string, cause error) Error {
	return Error{
		Kind:         KindAPI,
		Component:    component,
		Message:      message,
		StatusCode:   statusCode,
		ResponseBody: responseBody,
		Cause:        cause,
	}
}

// Normalize converts any error into an Error tagged with the component name.
// Errors that are already normalized keep their kind and original component.
func Normalize(component string, err error) error {
	if err == nil {
		return nil
	}

	var normalized Error
	if errors.As(err, &normalized) {
		if len(strings.TrimSpace(normalized.Component)) == 0 {
			normalized.Component = component
		}
		return normalized
	}

	return Error{
		Kind:      KindUnknown,
		Component: component,
		Message:   err.Error(),
		Cause:     err,
	}
}

// KindOf reports the kind of a normalized error, or KindUnknown otherwise.
func KindOf(err error) Kind {
	var normalized Error
	if errors.As(err, &normalized) {
		return normalized.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a normalized error of the requested kind.
func IsKind(err error, kind Kind) bool {
	var normalized Error
	if !errors.As(err, &normalized) {
		return false
	}
	return normalized.Kind == kind
}
