package shiitake

import (
	"context"
	"strings"
	"testing"

	"growcore/internal/core"
	"growcore/pkg/domain"
)

func TestPluginRegistersTargets(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	meta, err := svc.InstallPlugin(New())
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if meta.Name != "shiitake" {
		t.Fatalf("unexpected name %q", meta.Name)
	}

	for _, stage := range []domain.GrowthStage{domain.StageColonization, domain.StageFruiting} {
		target, ok := svc.Catalog().Lookup("shiitake", stage)
		if !ok || !target.IsComplete() {
			t.Fatalf("expected complete shiitake/%s target", stage)
		}
	}
	if target, _ := svc.Catalog().Lookup("shiitake", domain.StageFruiting); *target.TemperatureC != 17 {
		t.Fatalf("unexpected fruiting temperature %v", *target.TemperatureC)
	}
}

func TestSubstrateMoistureRuleWarns(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	if _, err := svc.InstallPlugin(New()); err != nil {
		t.Fatalf("install: %v", err)
	}

	room := domain.Room{
		ID:        "room-1",
		Name:      "shiitake cave",
		Species:   "shiitake",
		Stage:     domain.StageFruiting,
		VolumeM3:  30,
		Substrate: &domain.Substrate{Type: "oak sawdust", MassKg: 15, MoisturePct: 30},
		State:     domain.EnvironmentalState{TemperatureC: 17, HumidityPct: 87, CO2PPM: 900, AirflowCFM: 90},
	}
	scenario := core.SimulationScenario{
		Name:            "dry block check",
		Type:            domain.ScenarioBaseline,
		Mode:            domain.ModeSnapshot,
		DurationMinutes: 30,
		Rooms:           []domain.Room{room},
	}

	_, res, err := svc.CreateScenario(context.Background(), scenario)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	warnings := res.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "shiitake minimum") {
		t.Fatalf("expected moisture warning, got %v", warnings)
	}
}

func TestSubstrateMoistureRuleIgnoresOtherSpecies(t *testing.T) {
	rule := substrateMoistureRule{}
	view := singleScenarioView{scenario: core.SimulationScenario{
		Rooms: []domain.Room{{
			ID:        "room-1",
			Species:   "oyster",
			VolumeM3:  30,
			Substrate: &domain.Substrate{MoisturePct: 10},
		}},
	}}
	res, err := rule.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", res.Violations)
	}
}

type singleScenarioView struct {
	scenario core.SimulationScenario
}

func (v singleScenarioView) ListScenarios() []core.SimulationScenario {
	return []core.SimulationScenario{v.scenario}
}
func (v singleScenarioView) ListReports() []core.SimulationReport { return nil }
func (v singleScenarioView) FindScenario(string) (core.SimulationScenario, bool) {
	return core.SimulationScenario{}, false
}
func (v singleScenarioView) FindReport(string) (core.SimulationReport, bool) {
	return core.SimulationReport{}, false
}
