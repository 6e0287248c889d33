package profile

import (
	"errors"
	"fmt"
	"regexp"
)

// A profile name becomes a directory name and may follow a flag on the
// command line, so it cannot start with '-'.
var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateName checks that name can be used as a profile.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("profile name is empty")
	}
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: use up to 64 lowercase letters, digits, '-' or '_', starting with a letter or digit", name)
	}
	return nil
}
