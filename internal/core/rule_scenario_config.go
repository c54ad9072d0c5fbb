package core

import (
	"context"
	"fmt"

	"growcore/pkg/domain"
)

// NewScenarioConfigRule returns the default in-transaction rule blocking
// scenarios that cannot be simulated: non-positive duration, non-positive
// room volume, or unknown mode/type identifiers.
func NewScenarioConfigRule() domain.Rule {
	return scenarioConfigRule{}
}

type scenarioConfigRule struct{}

func (scenarioConfigRule) Name() string { return "scenario_config" }

var (
	validModes = map[domain.SimulationMode]bool{
		domain.ModeSnapshot:     true,
		domain.ModeTimeSeries:   true,
		domain.ModeStressTest:   true,
		domain.ModeOptimization: true,
	}
	validTypes = map[domain.ScenarioType]bool{
		domain.ScenarioBaseline:      true,
		domain.ScenarioWhatIf:        true,
		domain.ScenarioOptimization:  true,
		domain.ScenarioContamination: true,
	}
)

func (scenarioConfigRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, scenario := range view.ListScenarios() {
		if scenario.DurationMinutes <= 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "scenario_config",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("scenario %s (%s) duration must be positive, got %d", scenario.Name, scenario.ID, scenario.DurationMinutes),
				Entity:   domain.EntityScenario,
				EntityID: scenario.ID,
			})
		}
		if !validModes[scenario.Mode] {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "scenario_config",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("scenario %s (%s) has unknown simulation mode %q", scenario.Name, scenario.ID, scenario.Mode),
				Entity:   domain.EntityScenario,
				EntityID: scenario.ID,
			})
		}
		if !validTypes[scenario.Type] {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "scenario_config",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("scenario %s (%s) has unknown scenario type %q", scenario.Name, scenario.ID, scenario.Type),
				Entity:   domain.EntityScenario,
				EntityID: scenario.ID,
			})
		}
		for _, room := range scenario.Rooms {
			if room.VolumeM3 <= 0 {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "scenario_config",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("room %s (%s) volume must be positive, got %g m3", room.Name, room.ID, room.VolumeM3),
					Entity:   domain.EntityRoom,
					EntityID: room.ID,
				})
			}
		}
	}
	return res, nil
}
