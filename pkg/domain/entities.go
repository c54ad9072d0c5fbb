// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by growcore.
package domain

import "time"

// EntityType identifies the type of record stored in the registry.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityScenario identifies a simulation scenario record.
	EntityScenario EntityType = "scenario"
	// EntityReport identifies a simulation report record.
	EntityReport EntityType = "report"
	// EntityRoom identifies a room embedded in a scenario; used by rule violations.
	EntityRoom EntityType = "room"
)

// DeviceType enumerates the climate device kinds the simulator models.
type DeviceType string

// Device kinds recognised by the device-effect calculus.
const (
	DeviceHeater      DeviceType = "heater"
	DeviceHumidifier  DeviceType = "humidifier"
	DeviceFan         DeviceType = "fan"
	DeviceCO2Scrubber DeviceType = "co2_scrubber"
	DeviceLight       DeviceType = "light"
	DeviceSensor      DeviceType = "sensor"
)

// DeviceStatus captures the actuation state of a device.
type DeviceStatus string

// Device statuses. Only DeviceOn contributes an environmental effect.
const (
	DeviceOn      DeviceStatus = "on"
	DeviceOff     DeviceStatus = "off"
	DeviceStandby DeviceStatus = "standby"
)

// ScenarioType classifies the operator intent behind a scenario.
type ScenarioType string

// Scenario types drive report-level recommendations.
const (
	ScenarioBaseline      ScenarioType = "baseline"
	ScenarioWhatIf        ScenarioType = "what_if"
	ScenarioOptimization  ScenarioType = "optimization"
	ScenarioContamination ScenarioType = "contamination"
)

// SimulationMode selects which models run for each room in a scenario.
type SimulationMode string

// Simulation modes supported by the orchestrator.
const (
	ModeSnapshot     SimulationMode = "snapshot"
	ModeTimeSeries   SimulationMode = "time_series"
	ModeStressTest   SimulationMode = "stress_test"
	ModeOptimization SimulationMode = "optimization"
)

// GrowthStage represents the cultivation stage used for target lookup.
type GrowthStage string

// Canonical growth stages carried by the species/stage target catalog.
const (
	StageColonization GrowthStage = "colonization"
	StagePrimordia    GrowthStage = "primordia"
	StageFruiting     GrowthStage = "fruiting"
)

// StabilityClass is the qualitative judgment of a trajectory or control loop.
type StabilityClass string

// Stability classifications. Environmental curves use stable/drifting/oscillating;
// control loops use stable/oscillating/unstable.
const (
	StabilityStable      StabilityClass = "stable"
	StabilityDrifting    StabilityClass = "drifting"
	StabilityOscillating StabilityClass = "oscillating"
	StabilityUnstable    StabilityClass = "unstable"
)

// RiskLevel is the categorical contamination risk.
type RiskLevel string

// Contamination risk categories.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ControlStrategy selects the feedback law for closed-loop evaluation.
type ControlStrategy string

// Supported control strategies.
const (
	StrategyPID      ControlStrategy = "pid"
	StrategyBangBang ControlStrategy = "bang_bang"
	StrategyAdaptive ControlStrategy = "adaptive"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all registry records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnvironmentalState is one sample of a room's climate. Stored values always
// satisfy the physical bounds enforced by the environmental model.
type EnvironmentalState struct {
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	CO2PPM       float64   `json:"co2_ppm"`
	AirflowCFM   float64   `json:"airflow_cfm"`
	LightLux     float64   `json:"light_lux"`
	Timestamp    time.Time `json:"timestamp"`
}

// Device is a climate actuator or sensor attached to a room. Devices are value
// objects; identity does not extend beyond their id within a room.
type Device struct {
	ID         string       `json:"id"`
	Type       DeviceType   `json:"type"`
	Status     DeviceStatus `json:"status"`
	PowerWatts float64      `json:"power_watts"`
	// EffectRate magnitude; unit depends on Type: degC/h (heater), %RH/h
	// (humidifier), CFM (fan), ppm/h removal (scrubber), lux (light),
	// unused for sensors.
	EffectRate float64 `json:"effect_rate"`
}

// Substrate is an ongoing background source term for heat and CO2.
type Substrate struct {
	Type            string  `json:"type"`
	MassKg          float64 `json:"mass_kg"`
	MoisturePct     float64 `json:"moisture_pct"`
	CO2RatePPMHour  float64 `json:"co2_rate_ppm_hour"`
	HeatOutputWatts float64 `json:"heat_output_watts"`
}

// Room is a static grow-room representation owned by the scenario that created
// it. Volume and species are immutable for the life of a simulation run.
type Room struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Species   string             `json:"species,omitempty"`
	Stage     GrowthStage        `json:"stage,omitempty"`
	VolumeM3  float64            `json:"volume_m3"`
	Devices   []Device           `json:"devices"`
	Substrate *Substrate         `json:"substrate,omitempty"`
	State     EnvironmentalState `json:"state"`
}

// TargetEnvironment is a partial setpoint specification. Nil fields mean the
// parameter is not targeted.
type TargetEnvironment struct {
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	HumidityPct  *float64 `json:"humidity_pct,omitempty"`
	CO2PPM       *float64 `json:"co2_ppm,omitempty"`
}

// IsComplete reports whether all three controllable setpoints are defined.
func (t TargetEnvironment) IsComplete() bool {
	return t.TemperatureC != nil && t.HumidityPct != nil && t.CO2PPM != nil
}

// IsZero reports whether no setpoint is defined.
func (t TargetEnvironment) IsZero() bool {
	return t.TemperatureC == nil && t.HumidityPct == nil && t.CO2PPM == nil
}

// EnvironmentalCurve is the immutable time-series output of one environmental
// model run.
type EnvironmentalCurve struct {
	RoomID     string               `json:"room_id"`
	StartTime  time.Time            `json:"start_time"`
	EndTime    time.Time            `json:"end_time"`
	Samples    []EnvironmentalState `json:"samples"`
	Stability  StabilityClass       `json:"stability"`
	Deviations []string             `json:"deviations,omitempty"`
}

// RiskFactors captures which contamination factors were triggered and their
// magnitudes.
type RiskFactors struct {
	HighHumidity            bool    `json:"high_humidity"`
	PoorAirflow             bool    `json:"poor_airflow"`
	StagnantAir             bool    `json:"stagnant_air"`
	HighSubstrateMoisture   bool    `json:"high_substrate_moisture"`
	TemperatureFluctuationC float64 `json:"temperature_fluctuation_c"`
	SporeLoadEstimate       float64 `json:"spore_load_estimate"`
}

// ContaminationRiskMap is the bounded, explainable risk signal for one room.
type ContaminationRiskMap struct {
	RoomID          string      `json:"room_id"`
	Level           RiskLevel   `json:"level"`
	Score           int         `json:"score"`
	Factors         RiskFactors `json:"factors"`
	Recommendations []string    `json:"recommendations"`
	Rationale       []string    `json:"rationale"`
}

// ControlTolerance is the per-parameter tolerance band around the target.
type ControlTolerance struct {
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	CO2PPM       float64 `json:"co2_ppm"`
}

// ControlLoopConfig configures one closed-loop evaluation.
type ControlLoopConfig struct {
	DurationMinutes int               `json:"duration_minutes"`
	StepMinutes     int               `json:"step_minutes"`
	Strategy        ControlStrategy   `json:"strategy"`
	Target          TargetEnvironment `json:"target"`
	Tolerance       ControlTolerance  `json:"tolerance"`
}

// LoopStabilityReport is the immutable outcome of one closed-loop evaluation.
type LoopStabilityReport struct {
	RoomID          string         `json:"room_id"`
	DurationMinutes int            `json:"duration_minutes"`
	Stability       StabilityClass `json:"stability"`
	AvgDeviation    float64        `json:"avg_deviation"`
	MaxDeviation    float64        `json:"max_deviation"`
	ActuationCycles int            `json:"actuation_cycles"`
	EnergyKWh       float64        `json:"energy_kwh"`
	Recommendations []string       `json:"recommendations"`
	// OscillationFrequency is reported in cycles per hour when the loop oscillates.
	OscillationFrequency *float64 `json:"oscillation_frequency_cph,omitempty"`
}

// SimulationScenario is created once by the operator and never mutated after
// creation; re-running re-reads the same scenario.
type SimulationScenario struct {
	Base
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Type            ScenarioType   `json:"type"`
	Mode            SimulationMode `json:"mode"`
	DurationMinutes int            `json:"duration_minutes"`
	Rooms           []Room         `json:"rooms"`
	Parameters      map[string]any `json:"parameters,omitempty"`
}

// SimulationReport is the append-only product of one simulation run.
type SimulationReport struct {
	Base
	ScenarioID      string                 `json:"scenario_id"`
	DurationMinutes int                    `json:"duration_minutes"`
	Curves          []EnvironmentalCurve   `json:"curves,omitempty"`
	RiskMaps        []ContaminationRiskMap `json:"risk_maps,omitempty"`
	LoopReports     []LoopStabilityReport  `json:"loop_reports,omitempty"`
	TotalEnergyKWh  float64                `json:"total_energy_kwh"`
	Summary         string                 `json:"summary"`
	Warnings        []string               `json:"warnings,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported registry operations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the messages of all warn-severity violations.
func (r Result) Warnings() []string {
	var out []string
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v.Message)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
