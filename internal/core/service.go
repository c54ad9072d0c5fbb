package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	memory "growcore/internal/infra/persistence/memory"
	"growcore/internal/sim"
	"growcore/pkg/domain"
)

// loopDurationCapMinutes bounds closed-loop evaluations regardless of
// scenario duration; loop runs are the most expensive per-room work.
const loopDurationCapMinutes = 120

// Scenario parameter keys recognised by the orchestrator.
const (
	paramStepMinutes     = "step_minutes"
	paramControlStrategy = "control_strategy"
)

// Service exposes transactional scenario/report registry access and the
// simulation orchestration entry point.
type Service struct {
	store   PersistentStore
	model   *sim.EnvironmentalModel
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
	plugins map[string]PluginMetadata
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{
		store:   store,
		model:   sim.NewEnvironmentalModel(options.catalog),
		logger:  options.logger,
		audit:   options.audit,
		metrics: options.metrics,
		tracer:  options.tracer,
		clock:   options.clock,
		plugins: make(map[string]PluginMetadata),
	}
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Catalog returns the species/stage target catalog used for deviation
// detection and loop target resolution.
func (s *Service) Catalog() *sim.SpeciesCatalog {
	return s.model.Catalog()
}

// ErrNotFound is returned when a referenced registry entity does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// CreateScenario persists a new scenario after rule validation.
func (s *Service) CreateScenario(ctx context.Context, scenario SimulationScenario) (SimulationScenario, Result, error) {
	started := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, "create_scenario")
	var created SimulationScenario
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateScenario(scenario)
		return err
	})
	s.finishOperation(ctx, "create_scenario", created.ID, started, span, err)
	return created, res, err
}

// UpdateScenario mutates a scenario using the provided mutator.
func (s *Service) UpdateScenario(ctx context.Context, id string, mutator func(*SimulationScenario) error) (SimulationScenario, Result, error) {
	started := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, "update_scenario")
	var updated SimulationScenario
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateScenario(id, mutator)
		return err
	})
	s.finishOperation(ctx, "update_scenario", id, started, span, err)
	return updated, res, err
}

// DeleteScenario removes a scenario record. Reports referencing it are kept.
func (s *Service) DeleteScenario(ctx context.Context, id string) (Result, error) {
	started := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, "delete_scenario")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteScenario(id)
	})
	s.finishOperation(ctx, "delete_scenario", id, started, span, err)
	return res, err
}

// GetScenario returns a scenario by id.
func (s *Service) GetScenario(_ context.Context, id string) (SimulationScenario, error) {
	scenario, ok := s.store.GetScenario(id)
	if !ok {
		return SimulationScenario{}, ErrNotFound{Entity: EntityScenario, ID: id}
	}
	return scenario, nil
}

// ListScenarios returns all scenarios in deterministic order.
func (s *Service) ListScenarios(_ context.Context) []SimulationScenario {
	return s.store.ListScenarios()
}

// GetReport returns a report by id.
func (s *Service) GetReport(_ context.Context, id string) (SimulationReport, error) {
	report, ok := s.store.GetReport(id)
	if !ok {
		return SimulationReport{}, ErrNotFound{Entity: EntityReport, ID: id}
	}
	return report, nil
}

// ListReports returns all reports in deterministic order.
func (s *Service) ListReports(_ context.Context) []SimulationReport {
	return s.store.ListReports()
}

// RunSimulation executes the referenced scenario end to end and persists one
// append-only report. Re-running the same scenario produces an independent
// report; neither the scenario nor prior reports are mutated.
func (s *Service) RunSimulation(ctx context.Context, scenarioID string) (SimulationReport, Result, error) {
	started := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, "run_simulation")

	scenario, ok := s.store.GetScenario(scenarioID)
	if !ok {
		err := ErrNotFound{Entity: EntityScenario, ID: scenarioID}
		s.finishOperation(ctx, "run_simulation", scenarioID, started, span, err)
		return SimulationReport{}, Result{}, err
	}

	report, err := s.executeScenario(ctx, scenario)
	if err != nil {
		s.finishOperation(ctx, "run_simulation", scenarioID, started, span, err)
		return SimulationReport{}, Result{}, err
	}

	var persisted SimulationReport
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		persisted, err = tx.CreateReport(report)
		return err
	})
	s.finishOperation(ctx, "run_simulation", persisted.ID, started, span, err)
	if err == nil {
		s.logger.Info("simulation complete",
			"scenario_id", scenario.ID,
			"report_id", persisted.ID,
			"rooms", len(scenario.Rooms),
			"warnings", len(persisted.Warnings),
		)
	}
	return persisted, res, err
}

// roomOutcome carries one room's per-mode results. Slots are nil when the
// mode did not exercise the corresponding model.
type roomOutcome struct {
	curve *EnvironmentalCurve
	risk  *ContaminationRiskMap
	loop  *LoopStabilityReport
	err   error
}

// executeScenario evaluates every room and assembles the report. Rooms are
// independent, so they run in parallel; the indexed outcome slice preserves
// room ordering so identical inputs yield identical reports.
func (s *Service) executeScenario(ctx context.Context, scenario SimulationScenario) (SimulationReport, error) {
	stepMinutes := scenarioIntParam(scenario, paramStepMinutes, 1)
	strategy := scenarioStrategy(scenario)

	outcomes := make([]roomOutcome, len(scenario.Rooms))
	var wg sync.WaitGroup
	for i := range scenario.Rooms {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			outcomes[idx] = s.evaluateRoom(ctx, scenario, scenario.Rooms[idx], stepMinutes, strategy)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return SimulationReport{}, err
	}
	for i, outcome := range outcomes {
		if outcome.err != nil {
			return SimulationReport{}, fmt.Errorf("room %s: %w", scenario.Rooms[i].ID, outcome.err)
		}
	}

	report := SimulationReport{
		ScenarioID:      scenario.ID,
		DurationMinutes: scenario.DurationMinutes,
	}
	var totalEnergy float64
	for _, outcome := range outcomes {
		if outcome.curve != nil {
			report.Curves = append(report.Curves, *outcome.curve)
		}
		if outcome.risk != nil {
			report.RiskMaps = append(report.RiskMaps, *outcome.risk)
		}
		if outcome.loop != nil {
			report.LoopReports = append(report.LoopReports, *outcome.loop)
			totalEnergy += outcome.loop.EnergyKWh
		}
	}
	report.TotalEnergyKWh = math.Round(totalEnergy*1000) / 1000
	report.Warnings = collectWarnings(report)
	report.Recommendations = scenarioRecommendations(scenario, report)
	report.Summary = buildSummary(scenario, report)
	return report, nil
}

// evaluateRoom dispatches the models for one room according to the scenario mode.
func (s *Service) evaluateRoom(ctx context.Context, scenario SimulationScenario, room Room, stepMinutes int, strategy domain.ControlStrategy) roomOutcome {
	if err := ctx.Err(); err != nil {
		return roomOutcome{err: err}
	}

	switch scenario.Mode {
	case ModeSnapshot:
		risk := sim.AssessContaminationRisk(room, nil)
		s.auditContamination(ctx, room, risk)
		return roomOutcome{risk: &risk}

	case ModeTimeSeries, ModeStressTest, ModeOptimization:
		curve, err := s.model.SimulateTimeSeries(room, scenario.DurationMinutes, stepMinutes)
		if err != nil {
			return roomOutcome{err: err}
		}
		s.auditEnvironmental(ctx, room, curve)

		risk := sim.AssessContaminationRisk(room, curve.Samples)
		s.auditContamination(ctx, room, risk)
		outcome := roomOutcome{curve: &curve, risk: &risk}

		if scenario.Mode != ModeOptimization && scenario.Mode != ModeStressTest {
			return outcome
		}
		if err := ctx.Err(); err != nil {
			return roomOutcome{err: err}
		}
		target, ok := s.model.Catalog().Lookup(room.Species, room.Stage)
		if !ok || !target.IsComplete() {
			s.logger.Debug("loop evaluation skipped", "room_id", room.ID, "reason", "incomplete target")
			return outcome
		}
		cfg := ControlLoopConfig{
			DurationMinutes: minInt(scenario.DurationMinutes, loopDurationCapMinutes),
			StepMinutes:     1,
			Strategy:        strategy,
			Target:          target,
		}
		loop, err := sim.RunClosedLoop(room, cfg)
		if err != nil {
			return roomOutcome{err: err}
		}
		s.auditLoop(ctx, room, loop)
		outcome.loop = &loop
		return outcome

	default:
		return roomOutcome{err: fmt.Errorf("unknown simulation mode %q", scenario.Mode)}
	}
}

func collectWarnings(report SimulationReport) []string {
	var warnings []string
	for _, curve := range report.Curves {
		if curve.Stability != domain.StabilityStable {
			warnings = append(warnings, fmt.Sprintf("room %s environment is %s", curve.RoomID, curve.Stability))
		}
	}
	for _, risk := range report.RiskMaps {
		if risk.Level == domain.RiskHigh {
			warnings = append(warnings, fmt.Sprintf("room %s contamination risk is high (score %d)", risk.RoomID, risk.Score))
		}
	}
	for _, loop := range report.LoopReports {
		if loop.Stability != domain.StabilityStable {
			warnings = append(warnings, fmt.Sprintf("room %s control loop is %s", loop.RoomID, loop.Stability))
		}
	}
	return warnings
}

func scenarioRecommendations(scenario SimulationScenario, report SimulationReport) []string {
	var recs []string
	switch scenario.Type {
	case ScenarioOptimization:
		recs = append(recs, "review control loop tuning and device scheduling for further energy savings")
	case ScenarioContamination:
		high := 0
		for _, risk := range report.RiskMaps {
			if risk.Level == domain.RiskHigh {
				high++
			}
		}
		recs = append(recs, fmt.Sprintf("%d of %d rooms at high contamination risk; prioritize remediation there", high, len(scenario.Rooms)))
	}
	return recs
}

func buildSummary(scenario SimulationScenario, report SimulationReport) string {
	parts := []string{fmt.Sprintf("simulated %d rooms over %d minutes", len(scenario.Rooms), scenario.DurationMinutes)}

	if len(report.Curves) > 0 {
		stable := 0
		for _, curve := range report.Curves {
			if curve.Stability == domain.StabilityStable {
				stable++
			}
		}
		parts = append(parts, fmt.Sprintf("%d/%d environmental curves stable", stable, len(report.Curves)))
	}

	high := 0
	for _, risk := range report.RiskMaps {
		if risk.Level == domain.RiskHigh {
			high++
		}
	}
	parts = append(parts, fmt.Sprintf("%d rooms at high contamination risk", high))

	if len(report.LoopReports) > 0 {
		stable := 0
		for _, loop := range report.LoopReports {
			if loop.Stability == domain.StabilityStable {
				stable++
			}
		}
		parts = append(parts, fmt.Sprintf("%d/%d control loops stable", stable, len(report.LoopReports)))
	}

	return strings.Join(parts, "; ") + ". " + sim.RiskDisclaimer
}

// scenarioIntParam reads an integer scenario parameter, tolerating JSON
// float64 decoding, and falls back when absent or non-positive.
func scenarioIntParam(scenario SimulationScenario, key string, fallback int) int {
	raw, ok := scenario.Parameters[key]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func scenarioStrategy(scenario SimulationScenario) domain.ControlStrategy {
	if raw, ok := scenario.Parameters[paramControlStrategy].(string); ok && raw != "" {
		return domain.ControlStrategy(raw)
	}
	return domain.StrategyPID
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (s *Service) finishOperation(ctx context.Context, operation, entityID string, started time.Time, span TraceSpan, err error) {
	duration := s.clock.Now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	if err != nil {
		s.logger.Error(operation+" failed", "entity_id", entityID, "error", err)
		s.recordAuditError(ctx, operation, entityID, duration, err)
		return
	}
	s.recordAuditSuccess(ctx, operation, entityID, duration)
}

func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, duration time.Duration) {
	meta, ok := auditMetadata[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Category:  meta.category,
		Operation: operation,
		Status:    AuditStatusSuccess,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, operation, entityID string, duration time.Duration, err error) {
	meta, ok := auditMetadata[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Category:  meta.category,
		Operation: operation,
		Status:    AuditStatusError,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Message:   err.Error(),
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) auditEnvironmental(ctx context.Context, room Room, curve EnvironmentalCurve) {
	s.audit.Record(ctx, AuditEntry{
		Category:  AuditEnvironmental,
		Operation: "simulate_environment",
		Status:    AuditStatusSuccess,
		Entity:    EntityRoom,
		EntityID:  room.ID,
		Context: map[string]string{
			"stability":  string(curve.Stability),
			"samples":    strconv.Itoa(len(curve.Samples)),
			"deviations": strconv.Itoa(len(curve.Deviations)),
		},
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) auditContamination(ctx context.Context, room Room, risk ContaminationRiskMap) {
	s.audit.Record(ctx, AuditEntry{
		Category:  AuditContamination,
		Operation: "assess_contamination",
		Status:    AuditStatusSuccess,
		Entity:    EntityRoom,
		EntityID:  room.ID,
		Context: map[string]string{
			"level": string(risk.Level),
			"score": strconv.Itoa(risk.Score),
		},
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) auditLoop(ctx context.Context, room Room, loop LoopStabilityReport) {
	s.audit.Record(ctx, AuditEntry{
		Category:  AuditLoop,
		Operation: "evaluate_loop",
		Status:    AuditStatusSuccess,
		Entity:    EntityRoom,
		EntityID:  room.ID,
		Context: map[string]string{
			"stability": string(loop.Stability),
			"cycles":    strconv.Itoa(loop.ActuationCycles),
		},
		Timestamp: s.clock.Now(),
	})
}
