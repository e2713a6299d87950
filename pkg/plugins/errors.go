package plugins

import (
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/snaplock/pkg/validation"
)

var (
	// ErrNilPlugin is returned when registering a nil plugin or a
	// plugin with a nil manifest.
	ErrNilPlugin = errors.New("cannot register nil plugin")

	// ErrDuplicatePlugin is returned when a plugin ID is already
	// registered. Replacement is unregister-then-register.
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// ErrPluginNotFound is returned when no plugin has the given ID.
	ErrPluginNotFound = errors.New("plugin not found")
)

// InvalidPluginError reports the field-level findings that kept a
// plugin out of the registry.
type InvalidPluginError struct {
	PluginID string
	Issues   validation.Result
}

// Error implements the error interface.
func (e *InvalidPluginError) Error() string {
	msgs := e.Issues.Errors().Messages()
	return fmt.Sprintf("plugin %q failed validation: %s", e.PluginID, strings.Join(msgs, "; "))
}
