package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/snaplock/pkg/config"
	"github.com/platinummonkey/snaplock/pkg/engine"
	"github.com/platinummonkey/snaplock/pkg/observability"
	"github.com/platinummonkey/snaplock/pkg/plugins"
)

// newPolicyEngine builds an in-process engine carrying the bundle's
// complete policy: rules, permissions, and activated rule-pack
// plugins. Engine logs are discarded. The caller owns Close.
func newPolicyEngine(ctx context.Context, bundlePath string) (*engine.Engine, *config.Bundle, error) {
	bundle, err := config.LoadBundle(bundlePath)
	if err != nil {
		return nil, nil, err
	}
	if err := bundle.Validate(); err != nil {
		return nil, nil, err
	}

	e, err := engine.New(nil, engine.WithLogger(observability.NewNopLogger()))
	if err != nil {
		return nil, nil, err
	}

	if err := e.ApplyPolicy(ctx, bundle.Rules, bundle.Permissions); err != nil {
		e.Close()
		return nil, nil, err
	}

	if len(bundle.Plugins.Dirs) > 0 {
		if err := registerBundlePlugins(ctx, e, bundlePath, bundle); err != nil {
			e.Close()
			return nil, nil, err
		}
	}

	return e, bundle, nil
}

// registerBundlePlugins discovers rule packs under the bundle's plugin
// directories and registers the ones the bundle activates.
func registerBundlePlugins(ctx context.Context, e *engine.Engine, bundlePath string, bundle *config.Bundle) error {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	loader := plugins.NewLoader(config.ResolvePluginDirs(bundlePath, bundle.Plugins.Dirs), quiet)
	discovered, err := loader.Discover(ctx)
	if err != nil {
		return fmt.Errorf("plugin discovery failed: %w", err)
	}

	for _, p := range discovered {
		id := p.Manifest().ID
		if !bundle.Plugins.Activates(id) {
			continue
		}
		if err := e.RegisterPlugin(ctx, p); err != nil {
			return fmt.Errorf("failed to register plugin %s: %w", id, err)
		}
	}
	return nil
}
