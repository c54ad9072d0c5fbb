// Package core exposes the scenario orchestrator service, the validation
// rules it enforces, and the observability surfaces wired around it.
package core

import "growcore/pkg/domain"

type (
	EntityType           = domain.EntityType
	ScenarioType         = domain.ScenarioType
	SimulationMode       = domain.SimulationMode
	GrowthStage          = domain.GrowthStage
	Severity             = domain.Severity
	Room                 = domain.Room
	TargetEnvironment    = domain.TargetEnvironment
	EnvironmentalCurve   = domain.EnvironmentalCurve
	ContaminationRiskMap = domain.ContaminationRiskMap
	ControlLoopConfig    = domain.ControlLoopConfig
	LoopStabilityReport  = domain.LoopStabilityReport
	SimulationScenario   = domain.SimulationScenario
	SimulationReport     = domain.SimulationReport
	Change               = domain.Change
	Action               = domain.Action
	Violation            = domain.Violation
	Result               = domain.Result
	Rule                 = domain.Rule
	RuleView             = domain.RuleView
	RulesEngine          = domain.RulesEngine
	RuleViolationError   = domain.RuleViolationError
	Transaction          = domain.Transaction
	TransactionView      = domain.TransactionView
	PersistentStore      = domain.PersistentStore
)

const (
	EntityScenario = domain.EntityScenario
	EntityReport   = domain.EntityReport
	EntityRoom     = domain.EntityRoom
)

const (
	ModeSnapshot     = domain.ModeSnapshot
	ModeTimeSeries   = domain.ModeTimeSeries
	ModeStressTest   = domain.ModeStressTest
	ModeOptimization = domain.ModeOptimization
)

const (
	ScenarioBaseline      = domain.ScenarioBaseline
	ScenarioWhatIf        = domain.ScenarioWhatIf
	ScenarioOptimization  = domain.ScenarioOptimization
	ScenarioContamination = domain.ScenarioContamination
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
