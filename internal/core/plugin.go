package core

import (
	"fmt"
	"sort"

	"growcore/pkg/domain"
)

// Plugin describes a species pack that contributes validation rules and
// species/stage target environments.
type Plugin interface {
	Name() string
	Version() string
	Register(registry *PluginRegistry) error
}

// SpeciesTarget is one species/stage target environment contributed by a plugin.
type SpeciesTarget struct {
	Species string
	Stage   GrowthStage
	Target  TargetEnvironment
}

// PluginRegistry accumulates plugin contributions during registration.
type PluginRegistry struct {
	rules   []Rule
	targets []SpeciesTarget
}

// NewPluginRegistry constructs a plugin registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{}
}

// RegisterRule adds an in-transaction rule contributed by the plugin.
func (r *PluginRegistry) RegisterRule(rule Rule) {
	if rule == nil {
		return
	}
	r.rules = append(r.rules, rule)
}

// RegisterTarget stores a species/stage target environment contributed by the plugin.
func (r *PluginRegistry) RegisterTarget(species string, stage GrowthStage, target TargetEnvironment) error {
	if species == "" || stage == "" {
		return fmt.Errorf("species and stage are required for a target registration")
	}
	if target.IsZero() {
		return fmt.Errorf("target for %s/%s defines no setpoint", species, stage)
	}
	r.targets = append(r.targets, SpeciesTarget{Species: species, Stage: stage, Target: target})
	return nil
}

// Rules returns a copy of registered rules.
func (r *PluginRegistry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Targets returns a copy of registered species targets.
func (r *PluginRegistry) Targets() []SpeciesTarget {
	out := make([]SpeciesTarget, len(r.targets))
	copy(out, r.targets)
	return out
}

// PluginMetadata stores metadata describing an installed plugin.
type PluginMetadata struct {
	Name    string
	Version string
	Targets []string
}

// ruleEngineProvider is implemented by stores whose rules engine accepts
// runtime registration; all bundled backends qualify.
type ruleEngineProvider interface {
	RulesEngine() *domain.RulesEngine
}

// InstallPlugin registers a plugin, wiring its rules into the store's active
// engine and its species targets into the service catalog.
func (s *Service) InstallPlugin(plugin Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, fmt.Errorf("plugin cannot be nil")
	}
	if _, ok := s.plugins[plugin.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", plugin.Name())
	}

	registry := NewPluginRegistry()
	if err := plugin.Register(registry); err != nil {
		return PluginMetadata{}, err
	}

	rules := registry.Rules()
	if len(rules) > 0 {
		provider, ok := s.store.(ruleEngineProvider)
		if !ok {
			return PluginMetadata{}, fmt.Errorf("store does not accept plugin rules")
		}
		for _, rule := range rules {
			provider.RulesEngine().Register(rule)
		}
	}

	targets := registry.Targets()
	keys := make([]string, 0, len(targets))
	for _, target := range targets {
		s.model.Catalog().Register(target.Species, target.Stage, target.Target)
		keys = append(keys, fmt.Sprintf("%s/%s", target.Species, target.Stage))
	}
	sort.Strings(keys)

	meta := PluginMetadata{
		Name:    plugin.Name(),
		Version: plugin.Version(),
		Targets: keys,
	}
	s.plugins[plugin.Name()] = meta
	return meta, nil
}

// RegisteredPlugins returns metadata describing installed plugins, sorted by name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
