package main

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/snaplock/pkg/config"
	"github.com/platinummonkey/snaplock/pkg/engine"
	"github.com/platinummonkey/snaplock/pkg/observability"
	"github.com/platinummonkey/snaplock/pkg/plugins"
)

// policyLoader applies the policy bundle to the engine and keeps the
// registered rule packs in sync across hot reloads.
type policyLoader struct {
	mu         sync.Mutex
	engine     *engine.Engine
	bundlePath string
	logger     *observability.Logger
	pluginLog  *logrus.Logger

	// Plugin IDs registered from the last applied bundle.
	active []string
}

// Reload loads, validates, and applies the bundle. On error the
// engine keeps serving the previously applied policy.
func (p *policyLoader) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	bundle, err := config.LoadBundle(p.bundlePath)
	if err != nil {
		return err
	}
	if err := bundle.Validate(); err != nil {
		return err
	}
	if err := p.engine.ApplyPolicy(ctx, bundle.Rules, bundle.Permissions); err != nil {
		return err
	}
	p.syncPlugins(ctx, bundle)

	p.logger.WithFields(map[string]interface{}{
		"rules":      len(p.engine.Rules()),
		"users":      len(bundle.Permissions),
		"plugins":    len(p.active),
		"generation": p.engine.Generation(),
	}).Info("Policy bundle applied")
	return nil
}

// syncPlugins re-registers the bundle's activated rule packs. Packs
// from the previous bundle drop out first so edits to their rule
// files are picked up. A pack that fails admission is logged and
// skipped; the engine has already rolled its rules back.
func (p *policyLoader) syncPlugins(ctx context.Context, bundle *config.Bundle) {
	for _, id := range p.active {
		if err := p.engine.UnregisterPlugin(ctx, id); err != nil {
			p.logger.WithError(err).WithField("plugin_id", id).Warn("Failed to unregister rule pack")
		}
	}
	p.active = p.active[:0]

	if len(bundle.Plugins.Dirs) == 0 {
		return
	}

	loader := plugins.NewLoader(config.ResolvePluginDirs(p.bundlePath, bundle.Plugins.Dirs), p.pluginLog)
	discovered, err := loader.Discover(ctx)
	if err != nil {
		p.logger.WithError(err).Error("Rule pack discovery failed")
		return
	}

	for _, pack := range discovered {
		id := pack.Manifest().ID
		if !bundle.Plugins.Activates(id) {
			continue
		}
		if err := p.engine.RegisterPlugin(ctx, pack); err != nil {
			p.logger.WithError(err).WithField("plugin_id", id).Error("Rule pack admission failed, skipping")
			continue
		}
		p.active = append(p.active, id)
	}
}
