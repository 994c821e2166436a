package topology

import (
	"regexp"
	"strings"
)

const (
	reservedNamePrefix = "goog"
	minNameLength      = 3
	maxNameLength      = 255
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9\-_.~+%]*$`)

// ValidateName checks a topic or subscription name against the broker's naming
// rules. The returned error wraps ErrInvalidName and ErrConfiguration.
func ValidateName(name string) error {
	switch {
	case len(name) < minNameLength || len(name) > maxNameLength:
		return configError(ErrInvalidName, "%q must be between %d and %d characters", name, minNameLength, maxNameLength)
	case strings.HasPrefix(name, reservedNamePrefix):
		return configError(ErrInvalidName, "%q must not start with %q", name, reservedNamePrefix)
	case !namePattern.MatchString(name):
		return configError(ErrInvalidName, "%q must start with a letter and contain only letters, digits and - _ . ~ + %%", name)
	}
	return nil
}

// IsValidName reports whether ValidateName accepts name.
func IsValidName(name string) bool {
	return ValidateName(name) == nil
}
