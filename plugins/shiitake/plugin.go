// Package shiitake is the worked example of a species pack plugin. It
// contributes shiitake target environments and a substrate moisture rule.
package shiitake

import (
	"context"
	"fmt"
	"strings"

	"growcore/internal/core"
	"growcore/pkg/domain"
)

// minMoisturePct is the moisture floor below which shiitake blocks stall.
const minMoisturePct = 45.0

// Plugin implements the shiitake species pack.
type Plugin struct{}

// New constructs a shiitake plugin instance.
func New() Plugin {
	return Plugin{}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "shiitake" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.1.0" }

// Register wires species target environments and validation rules.
func (Plugin) Register(registry *core.PluginRegistry) error {
	colonizationTemp, colonizationHum, colonizationCO2 := 22.0, 70.0, 2000.0
	if err := registry.RegisterTarget("shiitake", domain.StageColonization, core.TargetEnvironment{
		TemperatureC: &colonizationTemp,
		HumidityPct:  &colonizationHum,
		CO2PPM:       &colonizationCO2,
	}); err != nil {
		return err
	}
	fruitingTemp, fruitingHum, fruitingCO2 := 17.0, 87.0, 900.0
	if err := registry.RegisterTarget("shiitake", domain.StageFruiting, core.TargetEnvironment{
		TemperatureC: &fruitingTemp,
		HumidityPct:  &fruitingHum,
		CO2PPM:       &fruitingCO2,
	}); err != nil {
		return err
	}

	registry.RegisterRule(substrateMoistureRule{})
	return nil
}

// substrateMoistureRule warns when shiitake rooms carry substrate too dry to fruit.
type substrateMoistureRule struct{}

func (substrateMoistureRule) Name() string { return "shiitake_substrate_moisture" }

func (substrateMoistureRule) Evaluate(_ context.Context, view core.RuleView, _ []core.Change) (core.Result, error) {
	res := core.Result{}
	for _, scenario := range view.ListScenarios() {
		for _, room := range scenario.Rooms {
			if !strings.Contains(strings.ToLower(room.Species), "shiitake") {
				continue
			}
			if room.Substrate == nil || room.Substrate.MoisturePct >= minMoisturePct {
				continue
			}
			res.Violations = append(res.Violations, core.Violation{
				Rule:     "shiitake_substrate_moisture",
				Severity: core.SeverityWarn,
				Message:  fmt.Sprintf("room %s substrate moisture %.0f%% is below the %.0f%% shiitake minimum", room.ID, room.Substrate.MoisturePct, minMoisturePct),
				Entity:   core.EntityRoom,
				EntityID: room.ID,
			})
		}
	}
	return res, nil
}
