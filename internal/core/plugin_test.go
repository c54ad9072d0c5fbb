package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"growcore/pkg/domain"
)

type testPlugin struct {
	registerErr error
}

func (testPlugin) Name() string    { return "testpack" }
func (testPlugin) Version() string { return "0.1.0" }

func (p testPlugin) Register(registry *PluginRegistry) error {
	if p.registerErr != nil {
		return p.registerErr
	}
	registry.RegisterRule(substrateMassRule{})
	temp, hum, co2 := 21.0, 80.0, 900.0
	return registry.RegisterTarget("reishi", domain.StageFruiting, TargetEnvironment{
		TemperatureC: &temp,
		HumidityPct:  &hum,
		CO2PPM:       &co2,
	})
}

// substrateMassRule warns about rooms carrying no substrate mass.
type substrateMassRule struct{}

func (substrateMassRule) Name() string { return "substrate_mass" }

func (substrateMassRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, scenario := range view.ListScenarios() {
		for _, room := range scenario.Rooms {
			if room.Substrate != nil && room.Substrate.MassKg <= 0 {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "substrate_mass",
					Severity: domain.SeverityWarn,
					Message:  "substrate present but has no mass",
					Entity:   domain.EntityRoom,
					EntityID: room.ID,
				})
			}
		}
	}
	return res, nil
}

func TestInstallPluginWiresRulesAndTargets(t *testing.T) {
	svc := NewInMemoryService(NewDefaultRulesEngine())

	meta, err := svc.InstallPlugin(testPlugin{})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if meta.Name != "testpack" || meta.Version != "0.1.0" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if len(meta.Targets) != 1 || meta.Targets[0] != "reishi/fruiting" {
		t.Fatalf("unexpected targets: %v", meta.Targets)
	}

	if target, ok := svc.Catalog().Lookup("reishi", domain.StageFruiting); !ok || !target.IsComplete() {
		t.Fatalf("expected complete reishi target in catalog")
	}

	room := fruitingRoom("room-1")
	room.Substrate = &domain.Substrate{Type: "sawdust", MassKg: 0}
	_, res, err := svc.CreateScenario(context.Background(), scenarioFixture(ModeSnapshot, ScenarioBaseline, room))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if warnings := res.Warnings(); len(warnings) != 1 || !strings.Contains(warnings[0], "no mass") {
		t.Fatalf("expected plugin rule warning, got %v", warnings)
	}
}

func TestInstallPluginRejectsDuplicatesAndNil(t *testing.T) {
	svc := NewInMemoryService(NewDefaultRulesEngine())
	if _, err := svc.InstallPlugin(nil); err == nil {
		t.Fatalf("expected nil plugin error")
	}
	if _, err := svc.InstallPlugin(testPlugin{}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := svc.InstallPlugin(testPlugin{}); err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if plugins := svc.RegisteredPlugins(); len(plugins) != 1 {
		t.Fatalf("expected one registered plugin, got %d", len(plugins))
	}
}

func TestInstallPluginPropagatesRegisterError(t *testing.T) {
	svc := NewInMemoryService(NewDefaultRulesEngine())
	boom := errors.New("boom")
	if _, err := svc.InstallPlugin(testPlugin{registerErr: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected register error, got %v", err)
	}
}

func TestPluginRegistryValidatesTargets(t *testing.T) {
	registry := NewPluginRegistry()
	if err := registry.RegisterTarget("", domain.StageFruiting, TargetEnvironment{}); err == nil {
		t.Fatalf("expected species requirement error")
	}
	if err := registry.RegisterTarget("reishi", domain.StageFruiting, TargetEnvironment{}); err == nil {
		t.Fatalf("expected empty target error")
	}
	registry.RegisterRule(nil)
	if len(registry.Rules()) != 0 {
		t.Fatalf("nil rule must be ignored")
	}
}
