package domain

import "context"

// Transaction exposes the registry operations that a persistence
// implementation must support within an atomic scope. Reports are
// append-only: there is no update or delete operation for them.
type Transaction interface {
	Snapshot() TransactionView
	CreateScenario(SimulationScenario) (SimulationScenario, error)
	UpdateScenario(id string, mutator func(*SimulationScenario) error) (SimulationScenario, error)
	DeleteScenario(id string) error
	CreateReport(SimulationReport) (SimulationReport, error)
	FindScenario(id string) (SimulationScenario, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// in-transaction reads.
type TransactionView interface {
	ListScenarios() []SimulationScenario
	ListReports() []SimulationReport
	FindScenario(id string) (SimulationScenario, bool)
	FindReport(id string) (SimulationReport, bool)
}

// PersistentStore is a minimal abstraction over durable registry backends. It
// mirrors the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetScenario(id string) (SimulationScenario, bool)
	ListScenarios() []SimulationScenario
	GetReport(id string) (SimulationReport, bool)
	ListReports() []SimulationReport
}
