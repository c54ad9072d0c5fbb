package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"growcore/pkg/domain"
)

// Physical bounds enforced after every step. Stored samples never violate them.
const (
	TemperatureMinC = 5.0
	TemperatureMaxC = 40.0
	HumidityMinPct  = 20.0
	HumidityMaxPct  = 100.0
	CO2MinPPM       = 400.0
	CO2MaxPPM       = 10000.0
)

// referenceVolumeM3 normalizes device effects and ambient drift to a 50 m3 room.
const referenceVolumeM3 = 50.0

// Ambient drift base rates, per hour, toward the ambient baseline.
const (
	driftTemperaturePerHour = -0.5
	driftHumidityPerHour    = -1.0
	driftCO2PerHour         = -20.0
)

// Deviation thresholds applied against the species/stage target means.
const (
	deviationTemperatureC = 2.0
	deviationHumidityPct  = 10.0
	deviationCO2PPM       = 500.0
)

// Validation errors returned before any simulation work begins.
var (
	ErrInvalidDuration = errors.New("sim: duration must be positive")
	ErrInvalidStep     = errors.New("sim: step must be positive")
	ErrInvalidVolume   = errors.New("sim: room volume must be positive")
	ErrMissingTarget   = errors.New("sim: control target must define temperature, humidity and co2 setpoints")
)

// EffectParameter names the environmental parameter a device effect targets.
type EffectParameter string

// Parameters addressable by device effects.
const (
	ParamTemperature EffectParameter = "temperature"
	ParamHumidity    EffectParameter = "humidity"
	ParamCO2         EffectParameter = "co2"
	ParamAirflow     EffectParameter = "airflow"
	ParamLight       EffectParameter = "light"
	// ParamNone marks devices with no environmental effect (sensors).
	ParamNone EffectParameter = ""
)

// DeviceEffect is the per-hour contribution of an active device to one
// environmental parameter, normalized by room volume.
type DeviceEffect struct {
	Parameter EffectParameter
	Magnitude float64
}

// CalculateDeviceEffect derives the volume-normalized effect of a device.
// Heater, humidifier and scrubber magnitudes scale with 50/volume; fans and
// lights act on the air and canopy directly and are not volume-scaled.
// Sensors have zero magnitude but still draw power.
func CalculateDeviceEffect(device domain.Device, volumeM3 float64) DeviceEffect {
	volumeFactor := referenceVolumeM3 / volumeM3
	switch device.Type {
	case domain.DeviceHeater:
		return DeviceEffect{Parameter: ParamTemperature, Magnitude: device.EffectRate * volumeFactor}
	case domain.DeviceHumidifier:
		return DeviceEffect{Parameter: ParamHumidity, Magnitude: device.EffectRate * volumeFactor}
	case domain.DeviceFan:
		return DeviceEffect{Parameter: ParamAirflow, Magnitude: device.EffectRate}
	case domain.DeviceCO2Scrubber:
		return DeviceEffect{Parameter: ParamCO2, Magnitude: -device.EffectRate * volumeFactor}
	case domain.DeviceLight:
		return DeviceEffect{Parameter: ParamLight, Magnitude: device.EffectRate}
	default:
		return DeviceEffect{Parameter: ParamNone}
	}
}

// fanCO2ExchangeFactor converts a fan's airflow contribution into CO2 removal.
const fanCO2ExchangeFactor = 5.0

// StepEnvironment advances a room's environmental state by one step of
// stepMinutes: ambient drift, substrate source terms, device effects, bounds
// clamping, and rounding, in that order.
func StepEnvironment(room domain.Room, state domain.EnvironmentalState, stepMinutes int) domain.EnvironmentalState {
	stepHours := float64(stepMinutes) / 60.0

	// Larger rooms drift toward ambient more slowly; the divisor is capped at 2.
	driftDivisor := math.Min(room.VolumeM3/referenceVolumeM3, 2)
	state.TemperatureC += (driftTemperaturePerHour / driftDivisor) * stepHours
	state.HumidityPct += (driftHumidityPerHour / driftDivisor) * stepHours
	state.CO2PPM += (driftCO2PerHour / driftDivisor) * stepHours

	if sub := room.Substrate; sub != nil {
		state.TemperatureC += (sub.HeatOutputWatts / (room.VolumeM3 * 50)) * stepHours
		state.CO2PPM += sub.CO2RatePPMHour * stepHours
	}

	for _, device := range room.Devices {
		if device.Status != domain.DeviceOn {
			continue
		}
		effect := CalculateDeviceEffect(device, room.VolumeM3)
		switch effect.Parameter {
		case ParamTemperature:
			state.TemperatureC += effect.Magnitude * stepHours
		case ParamHumidity:
			state.HumidityPct += effect.Magnitude * stepHours
		case ParamCO2:
			state.CO2PPM += effect.Magnitude * stepHours
		case ParamAirflow:
			state.AirflowCFM += effect.Magnitude * stepHours
			// Air exchange vents CO2 out of the room.
			state.CO2PPM -= effect.Magnitude * fanCO2ExchangeFactor * stepHours
		case ParamLight:
			state.LightLux += effect.Magnitude * stepHours
		}
	}

	state = clampAndRound(state)
	state.Timestamp = state.Timestamp.Add(time.Duration(stepMinutes) * time.Minute)
	return state
}

func clampAndRound(state domain.EnvironmentalState) domain.EnvironmentalState {
	state.TemperatureC = round2(clamp(state.TemperatureC, TemperatureMinC, TemperatureMaxC))
	state.HumidityPct = round2(clamp(state.HumidityPct, HumidityMinPct, HumidityMaxPct))
	state.CO2PPM = math.Round(clamp(state.CO2PPM, CO2MinPPM, CO2MaxPPM))
	return state
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EnvironmentalModel produces time-series projections and qualitative
// assessments for rooms. The catalog supplies species/stage targets for
// deviation detection.
type EnvironmentalModel struct {
	catalog *SpeciesCatalog
}

// NewEnvironmentalModel constructs a model. A nil catalog falls back to the
// built-in species table.
func NewEnvironmentalModel(catalog *SpeciesCatalog) *EnvironmentalModel {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &EnvironmentalModel{catalog: catalog}
}

// Catalog returns the species/stage target catalog backing the model.
func (m *EnvironmentalModel) Catalog() *SpeciesCatalog { return m.catalog }

// SimulateTimeSeries advances the room's state in discrete steps and returns
// an immutable curve of floor(duration/step)+1 samples, inclusive of the
// initial sample, with a stability classification and detected deviations.
func (m *EnvironmentalModel) SimulateTimeSeries(room domain.Room, durationMinutes, stepMinutes int) (domain.EnvironmentalCurve, error) {
	if durationMinutes <= 0 {
		return domain.EnvironmentalCurve{}, ErrInvalidDuration
	}
	if stepMinutes <= 0 {
		return domain.EnvironmentalCurve{}, ErrInvalidStep
	}
	if room.VolumeM3 <= 0 {
		return domain.EnvironmentalCurve{}, ErrInvalidVolume
	}

	steps := durationMinutes / stepMinutes
	samples := make([]domain.EnvironmentalState, 0, steps+1)

	state := clampAndRound(room.State)
	samples = append(samples, state)
	for i := 0; i < steps; i++ {
		state = StepEnvironment(room, state, stepMinutes)
		samples = append(samples, state)
	}

	return domain.EnvironmentalCurve{
		RoomID:     room.ID,
		StartTime:  samples[0].Timestamp,
		EndTime:    samples[len(samples)-1].Timestamp,
		Samples:    samples,
		Stability:  AssessStability(samples),
		Deviations: m.DetectDeviations(room, samples),
	}, nil
}

// Variance thresholds for trajectory classification.
const (
	oscillatingTemperatureVariance = 4.0
	oscillatingHumidityVariance    = 100.0
	driftingTemperatureVariance    = 2.0
	driftingHumidityVariance       = 50.0
	minStabilitySamples            = 10
)

// AssessStability classifies a trajectory from the population variance of its
// temperature and humidity series. Fewer than 10 samples carry insufficient
// signal and always classify as stable.
func AssessStability(samples []domain.EnvironmentalState) domain.StabilityClass {
	if len(samples) < minStabilitySamples {
		return domain.StabilityStable
	}
	tempVar := populationVariance(samples, func(s domain.EnvironmentalState) float64 { return s.TemperatureC })
	humVar := populationVariance(samples, func(s domain.EnvironmentalState) float64 { return s.HumidityPct })

	switch {
	case tempVar > oscillatingTemperatureVariance || humVar > oscillatingHumidityVariance:
		return domain.StabilityOscillating
	case tempVar > driftingTemperatureVariance || humVar > driftingHumidityVariance:
		return domain.StabilityDrifting
	default:
		return domain.StabilityStable
	}
}

func populationVariance(samples []domain.EnvironmentalState, value func(domain.EnvironmentalState) float64) float64 {
	n := float64(len(samples))
	var sum float64
	for _, s := range samples {
		sum += value(s)
	}
	mean := sum / n
	var acc float64
	for _, s := range samples {
		d := value(s) - mean
		acc += d * d
	}
	return acc / n
}

// DetectDeviations compares the curve's parameter means against the room's
// species/stage target. Rooms without a registered target yield no deviations.
func (m *EnvironmentalModel) DetectDeviations(room domain.Room, samples []domain.EnvironmentalState) []string {
	target, ok := m.catalog.Lookup(room.Species, room.Stage)
	if !ok || len(samples) == 0 {
		return nil
	}

	n := float64(len(samples))
	var tempSum, humSum, co2Sum float64
	for _, s := range samples {
		tempSum += s.TemperatureC
		humSum += s.HumidityPct
		co2Sum += s.CO2PPM
	}

	var deviations []string
	if target.TemperatureC != nil {
		if gap := tempSum/n - *target.TemperatureC; math.Abs(gap) > deviationTemperatureC {
			deviations = append(deviations, fmt.Sprintf(
				"mean temperature %.2f°C deviates from target %.1f°C by %.2f°C", tempSum/n, *target.TemperatureC, math.Abs(gap)))
		}
	}
	if target.HumidityPct != nil {
		if gap := humSum/n - *target.HumidityPct; math.Abs(gap) > deviationHumidityPct {
			deviations = append(deviations, fmt.Sprintf(
				"mean humidity %.2f%%RH deviates from target %.1f%%RH by %.2f%%RH", humSum/n, *target.HumidityPct, math.Abs(gap)))
		}
	}
	if target.CO2PPM != nil {
		if gap := co2Sum/n - *target.CO2PPM; math.Abs(gap) > deviationCO2PPM {
			deviations = append(deviations, fmt.Sprintf(
				"mean CO2 %.0f ppm deviates from target %.0f ppm by %.0f ppm", co2Sum/n, *target.CO2PPM, math.Abs(gap)))
		}
	}
	return deviations
}
