package engine

import (
	"errors"

	"github.com/platinummonkey/snaplock/pkg/errdefs"
	"github.com/platinummonkey/snaplock/pkg/plugins"
	"github.com/platinummonkey/snaplock/pkg/validation"
)

// ErrClosed is returned, wrapped in an internal ErrorResult, by every
// operation invoked after Close.
var ErrClosed = errors.New("engine is closed")

// invalidInput shapes a validation result into the boundary error,
// carrying the field-level findings in the detail map.
func invalidInput(msg string, result validation.Result) *errdefs.ErrorResult {
	return errdefs.Validation(msg).WithDetail("issues", result.Errors())
}

// pluginAdmissionError converts registry admission failures into the
// boundary error shape.
func pluginAdmissionError(err error) error {
	var invalid *plugins.InvalidPluginError
	switch {
	case errors.As(err, &invalid):
		return errdefs.Validation("plugin rejected").
			WithCause(err).
			WithDetail("plugin_id", invalid.PluginID).
			WithDetail("issues", invalid.Issues.Errors())
	case errors.Is(err, plugins.ErrNilPlugin), errors.Is(err, plugins.ErrDuplicatePlugin):
		return errdefs.Validation(err.Error()).WithCause(err)
	case errors.Is(err, plugins.ErrPluginNotFound):
		return errdefs.NotFound(err.Error()).WithCause(err)
	default:
		return errdefs.Internal("plugin registration failed", err)
	}
}
