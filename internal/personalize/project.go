package personalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/temirov/personalize-migrate/internal/failures"
)

const (
	projectValidationComponentConstant     = "ProjectValidation"
	projectUIDMinimumLengthConstant        = 3
	projectUIDRequiredMessageConstant      = "Project UID is required"
	projectUIDTooShortTemplateConstant     = "Project UID must be at least %d characters long"
	projectUIDInvalidCharactersMessageText = "Project UID contains invalid characters. Only alphanumeric characters, hyphens, and underscores are allowed."
)

var projectUIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ProjectUID identifies a Personalize project.
type ProjectUID string

// String returns the raw identifier.
func (projectUID ProjectUID) String() string {
	return string(projectUID)
}

// ParseProjectUID validates a raw project identifier without contacting the API.
func ParseProjectUID(value string) (ProjectUID, error) {
	if len(strings.TrimSpace(value)) == 0 {
		return "", failures.NewValidationError(projectValidationComponentConstant, projectUIDRequiredMessageConstant)
	}

	if len(value) < projectUIDMinimumLengthConstant {
		return "", failures.NewValidationError(projectValidationComponentConstant, fmt.Sprintf(projectUIDTooShortTemplateConstant, projectUIDMinimumLengthConstant))
	}

	if !projectUIDPattern.MatchString(value) {
		return "", failures.NewValidationError(projectValidationComponentConstant, projectUIDInvalidCharactersMessageText)
	}

	return ProjectUID(value), nil
}
