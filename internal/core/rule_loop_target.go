package core

import (
	"context"
	"fmt"

	"growcore/internal/sim"
	"growcore/pkg/domain"
)

// NewLoopTargetRule returns a warn-severity rule flagging rooms in
// optimization and stress-test scenarios whose species/stage target is not
// fully defined; loop evaluation is silently skipped for those rooms.
func NewLoopTargetRule(catalog *sim.SpeciesCatalog) domain.Rule {
	if catalog == nil {
		catalog = sim.DefaultCatalog()
	}
	return loopTargetRule{catalog: catalog}
}

type loopTargetRule struct {
	catalog *sim.SpeciesCatalog
}

func (loopTargetRule) Name() string { return "loop_target" }

func (r loopTargetRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, scenario := range view.ListScenarios() {
		if scenario.Mode != domain.ModeOptimization && scenario.Mode != domain.ModeStressTest {
			continue
		}
		for _, room := range scenario.Rooms {
			target, ok := r.catalog.Lookup(room.Species, room.Stage)
			if ok && target.IsComplete() {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "loop_target",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("room %s (%s) has no complete species/stage target; control loop evaluation will be skipped", room.Name, room.ID),
				Entity:   domain.EntityRoom,
				EntityID: room.ID,
			})
		}
	}
	return res, nil
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewScenarioConfigRule())
	engine.Register(NewLoopTargetRule(nil))
	return engine
}
