// Package memory provides an in-memory implementation of the registry
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"growcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// SimulationScenario aliases domain.SimulationScenario for in-memory persistence operations.
	SimulationScenario = domain.SimulationScenario
	// SimulationReport aliases domain.SimulationReport.
	SimulationReport = domain.SimulationReport
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	scenarios map[string]SimulationScenario
	reports   map[string]SimulationReport
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Scenarios map[string]SimulationScenario `json:"scenarios"`
	Reports   map[string]SimulationReport   `json:"reports"`
}

func newMemoryState() memoryState {
	return memoryState{
		scenarios: make(map[string]SimulationScenario),
		reports:   make(map[string]SimulationReport),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Scenarios: make(map[string]SimulationScenario, len(state.scenarios)),
		Reports:   make(map[string]SimulationReport, len(state.reports)),
	}
	for k, v := range state.scenarios {
		s.Scenarios[k] = cloneScenario(v)
	}
	for k, v := range state.reports {
		s.Reports[k] = cloneReport(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Scenarios {
		state.scenarios[k] = cloneScenario(v)
	}
	for k, v := range s.Reports {
		state.reports[k] = cloneReport(v)
	}
	return state
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.scenarios {
		out.scenarios[k] = cloneScenario(v)
	}
	for k, v := range s.reports {
		out.reports[k] = cloneReport(v)
	}
	return out
}

func cloneRoom(r domain.Room) domain.Room {
	out := r
	if r.Devices != nil {
		out.Devices = make([]domain.Device, len(r.Devices))
		copy(out.Devices, r.Devices)
	}
	if r.Substrate != nil {
		sub := *r.Substrate
		out.Substrate = &sub
	}
	return out
}

func cloneScenario(sc SimulationScenario) SimulationScenario {
	out := sc
	if sc.Rooms != nil {
		out.Rooms = make([]domain.Room, len(sc.Rooms))
		for i, r := range sc.Rooms {
			out.Rooms[i] = cloneRoom(r)
		}
	}
	if sc.Parameters != nil {
		out.Parameters = make(map[string]any, len(sc.Parameters))
		for k, v := range sc.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneCurve(c domain.EnvironmentalCurve) domain.EnvironmentalCurve {
	out := c
	if c.Samples != nil {
		out.Samples = make([]domain.EnvironmentalState, len(c.Samples))
		copy(out.Samples, c.Samples)
	}
	out.Deviations = cloneStrings(c.Deviations)
	return out
}

func cloneRiskMap(m domain.ContaminationRiskMap) domain.ContaminationRiskMap {
	out := m
	out.Recommendations = cloneStrings(m.Recommendations)
	out.Rationale = cloneStrings(m.Rationale)
	return out
}

func cloneLoopReport(l domain.LoopStabilityReport) domain.LoopStabilityReport {
	out := l
	out.Recommendations = cloneStrings(l.Recommendations)
	if l.OscillationFrequency != nil {
		f := *l.OscillationFrequency
		out.OscillationFrequency = &f
	}
	return out
}

func cloneReport(r SimulationReport) SimulationReport {
	out := r
	if r.Curves != nil {
		out.Curves = make([]domain.EnvironmentalCurve, len(r.Curves))
		for i, c := range r.Curves {
			out.Curves[i] = cloneCurve(c)
		}
	}
	if r.RiskMaps != nil {
		out.RiskMaps = make([]domain.ContaminationRiskMap, len(r.RiskMaps))
		for i, m := range r.RiskMaps {
			out.RiskMaps[i] = cloneRiskMap(m)
		}
	}
	if r.LoopReports != nil {
		out.LoopReports = make([]domain.LoopStabilityReport, len(r.LoopReports))
		for i, l := range r.LoopReports {
			out.LoopReports[i] = cloneLoopReport(l)
		}
	}
	out.Warnings = cloneStrings(r.Warnings)
	out.Recommendations = cloneStrings(r.Recommendations)
	return out
}

func sortScenarios(out []SimulationScenario) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func sortReports(out []SimulationReport) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

// Store is the reference PersistentStore implementation. All reads return
// clones; callers can never mutate committed state through returned values.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine for integration points like plugins.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListScenarios returns all scenarios within the transaction snapshot.
func (v transactionView) ListScenarios() []SimulationScenario {
	out := make([]SimulationScenario, 0, len(v.state.scenarios))
	for _, sc := range v.state.scenarios {
		out = append(out, cloneScenario(sc))
	}
	sortScenarios(out)
	return out
}

// ListReports returns all reports within the transaction snapshot.
func (v transactionView) ListReports() []SimulationReport {
	out := make([]SimulationReport, 0, len(v.state.reports))
	for _, r := range v.state.reports {
		out = append(out, cloneReport(r))
	}
	sortReports(out)
	return out
}

func (v transactionView) FindScenario(id string) (SimulationScenario, bool) {
	sc, ok := v.state.scenarios[id]
	if !ok {
		return SimulationScenario{}, false
	}
	return cloneScenario(sc), true
}

func (v transactionView) FindReport(id string) (SimulationReport, bool) {
	r, ok := v.state.reports[id]
	if !ok {
		return SimulationReport{}, false
	}
	return cloneReport(r), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Registered rules run against the post-mutation state; blocking violations
// abort the commit with a RuleViolationError.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindScenario(id string) (SimulationScenario, bool) {
	sc, ok := tx.state.scenarios[id]
	if !ok {
		return SimulationScenario{}, false
	}
	return cloneScenario(sc), true
}

// CreateScenario stores a new scenario.
func (tx *transaction) CreateScenario(sc SimulationScenario) (SimulationScenario, error) {
	if sc.ID == "" {
		sc.ID = tx.store.newID()
	}
	if _, exists := tx.state.scenarios[sc.ID]; exists {
		return SimulationScenario{}, fmt.Errorf("scenario %q already exists", sc.ID)
	}
	sc.CreatedAt = tx.now
	sc.UpdatedAt = tx.now
	tx.state.scenarios[sc.ID] = cloneScenario(sc)
	tx.recordChange(Change{Entity: domain.EntityScenario, Action: domain.ActionCreate, After: cloneScenario(sc)})
	return cloneScenario(sc), nil
}

// UpdateScenario mutates a scenario using the provided mutator function.
func (tx *transaction) UpdateScenario(id string, mutator func(*SimulationScenario) error) (SimulationScenario, error) {
	current, ok := tx.state.scenarios[id]
	if !ok {
		return SimulationScenario{}, fmt.Errorf("scenario %q not found", id)
	}
	before := cloneScenario(current)
	if err := mutator(&current); err != nil {
		return SimulationScenario{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.scenarios[id] = cloneScenario(current)
	tx.recordChange(Change{Entity: domain.EntityScenario, Action: domain.ActionUpdate, Before: before, After: cloneScenario(current)})
	return cloneScenario(current), nil
}

// DeleteScenario removes a scenario. Reports referencing it stay in place;
// reports are an append-only audit of past runs.
func (tx *transaction) DeleteScenario(id string) error {
	current, ok := tx.state.scenarios[id]
	if !ok {
		return fmt.Errorf("scenario %q not found", id)
	}
	delete(tx.state.scenarios, id)
	tx.recordChange(Change{Entity: domain.EntityScenario, Action: domain.ActionDelete, Before: cloneScenario(current)})
	return nil
}

// CreateReport appends a new report. Reports have no update or delete.
func (tx *transaction) CreateReport(r SimulationReport) (SimulationReport, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.reports[r.ID]; exists {
		return SimulationReport{}, fmt.Errorf("report %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.reports[r.ID] = cloneReport(r)
	tx.recordChange(Change{Entity: domain.EntityReport, Action: domain.ActionCreate, After: cloneReport(r)})
	return cloneReport(r), nil
}

// GetScenario returns a scenario by id.
func (s *Store) GetScenario(id string) (SimulationScenario, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.state.scenarios[id]
	if !ok {
		return SimulationScenario{}, false
	}
	return cloneScenario(sc), true
}

// ListScenarios returns all scenarios ordered by creation time.
func (s *Store) ListScenarios() []SimulationScenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SimulationScenario, 0, len(s.state.scenarios))
	for _, sc := range s.state.scenarios {
		out = append(out, cloneScenario(sc))
	}
	sortScenarios(out)
	return out
}

// GetReport returns a report by id.
func (s *Store) GetReport(id string) (SimulationReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.reports[id]
	if !ok {
		return SimulationReport{}, false
	}
	return cloneReport(r), true
}

// ListReports returns all reports ordered by creation time.
func (s *Store) ListReports() []SimulationReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SimulationReport, 0, len(s.state.reports))
	for _, r := range s.state.reports {
		out = append(out, cloneReport(r))
	}
	sortReports(out)
	return out
}
