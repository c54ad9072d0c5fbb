// Package sim implements the deterministic grow-room simulation core: the
// room snapshot builder, the environmental stepping model, the contamination
// risk model, the closed-loop control evaluator, and the species/stage target
// catalog.
//
// Everything in this package is pure computation over pkg/domain values. The
// package holds no store handles and emits no events; orchestration,
// persistence, and audit logging live in internal/core.
package sim
