package sim

import (
	"fmt"
	"math"

	"growcore/pkg/domain"
)

// controlError carries the signed per-parameter error, normalized by
// tolerance, in the actuating direction: positive temperature error calls for
// heat, positive humidity error for misting, positive co2 error for scrubbing.
type controlError struct {
	heat     float64
	humidify float64
	scrub    float64
}

// intensities are actuation levels in [0,1] per controlled parameter.
type intensities struct {
	heat     float64
	humidify float64
	scrub    float64
}

type controller interface {
	decide(err controlError, stepHours float64) intensities
}

// bangBangController switches actuators fully on when the error exceeds the
// tolerance band and off once back inside it.
type bangBangController struct{}

func (bangBangController) decide(err controlError, _ float64) intensities {
	on := func(e float64) float64 {
		if e > 1 {
			return 1
		}
		return 0
	}
	return intensities{heat: on(err.heat), humidify: on(err.humidify), scrub: on(err.scrub)}
}

// pidGains are tunable; the defaults favor a damped approach over speed.
type pidGains struct {
	kp, ki, kd float64
}

func defaultPIDGains() pidGains { return pidGains{kp: 0.8, ki: 0.1, kd: 0.05} }

type pidChannel struct {
	integral float64
	prevErr  float64
	primed   bool
}

func (c *pidChannel) update(gains pidGains, err, stepHours float64) float64 {
	c.integral = clamp(c.integral+err*stepHours, -5, 5)
	derivative := 0.0
	if c.primed && stepHours > 0 {
		derivative = (err - c.prevErr) / stepHours
	}
	c.prevErr = err
	c.primed = true
	return clamp(gains.kp*err+gains.ki*c.integral+gains.kd*derivative, 0, 1)
}

type pidController struct {
	gains pidGains
	temp  pidChannel
	hum   pidChannel
	co2   pidChannel
}

func newPIDController() *pidController {
	return &pidController{gains: defaultPIDGains()}
}

func (c *pidController) decide(err controlError, stepHours float64) intensities {
	return intensities{
		heat:     c.temp.update(c.gains, err.heat, stepHours),
		humidify: c.hum.update(c.gains, err.humidify, stepHours),
		scrub:    c.co2.update(c.gains, err.scrub, stepHours),
	}
}

// adaptiveController runs a PID loop and detunes the proportional and
// derivative gains when the error signal keeps flipping sign, trading speed
// for damping.
type adaptiveController struct {
	pid       *pidController
	signs     []int
	windowLen int
}

func newAdaptiveController() *adaptiveController {
	return &adaptiveController{pid: newPIDController(), windowLen: 10}
}

func (c *adaptiveController) decide(err controlError, stepHours float64) intensities {
	dominant := err.heat
	if math.Abs(err.humidify) > math.Abs(dominant) {
		dominant = err.humidify
	}
	if math.Abs(err.scrub) > math.Abs(dominant) {
		dominant = err.scrub
	}
	sign := 0
	if dominant > 0 {
		sign = 1
	} else if dominant < 0 {
		sign = -1
	}
	c.signs = append(c.signs, sign)
	if len(c.signs) > c.windowLen {
		c.signs = c.signs[len(c.signs)-c.windowLen:]
	}

	flips := 0
	for i := 1; i < len(c.signs); i++ {
		if c.signs[i] != 0 && c.signs[i-1] != 0 && c.signs[i] != c.signs[i-1] {
			flips++
		}
	}
	if flips >= 3 {
		c.pid.gains.kp = math.Max(c.pid.gains.kp*0.7, 0.1)
		c.pid.gains.kd = math.Max(c.pid.gains.kd*0.7, 0.01)
		c.pid.temp.integral = 0
		c.pid.hum.integral = 0
		c.pid.co2.integral = 0
		c.signs = c.signs[:0]
	}

	return c.pid.decide(err, stepHours)
}

func controllerForStrategy(strategy domain.ControlStrategy) (controller, error) {
	switch strategy {
	case domain.StrategyBangBang:
		return bangBangController{}, nil
	case domain.StrategyPID:
		return newPIDController(), nil
	case domain.StrategyAdaptive:
		return newAdaptiveController(), nil
	default:
		return nil, fmt.Errorf("sim: unknown control strategy %q", strategy)
	}
}

// intensityFor maps a device to its controlling channel. Lights and sensors
// are not actuated by the loop and keep their configured status.
func intensityFor(device domain.Device, u intensities) (float64, bool) {
	switch device.Type {
	case domain.DeviceHeater:
		return u.heat, true
	case domain.DeviceHumidifier:
		return u.humidify, true
	case domain.DeviceFan, domain.DeviceCO2Scrubber:
		return u.scrub, true
	default:
		return 0, false
	}
}

// RunClosedLoop simulates a feedback controller steering the room toward the
// target environment and classifies the resulting dynamic behavior. The
// physical per-step dynamics are shared with the environmental model; only
// device actuation differs, driven by the configured strategy each step.
//
// Deviation figures are normalized by tolerance: a deviation of 1.0 sits
// exactly on the tolerance band.
func RunClosedLoop(room domain.Room, cfg domain.ControlLoopConfig) (domain.LoopStabilityReport, error) {
	if room.VolumeM3 <= 0 {
		return domain.LoopStabilityReport{}, ErrInvalidVolume
	}
	if cfg.DurationMinutes <= 0 {
		return domain.LoopStabilityReport{}, ErrInvalidDuration
	}
	stepMinutes := cfg.StepMinutes
	if stepMinutes == 0 {
		stepMinutes = 1
	}
	if stepMinutes < 0 {
		return domain.LoopStabilityReport{}, ErrInvalidStep
	}
	if !cfg.Target.IsComplete() {
		return domain.LoopStabilityReport{}, ErrMissingTarget
	}
	ctrl, err := controllerForStrategy(cfg.Strategy)
	if err != nil {
		return domain.LoopStabilityReport{}, err
	}

	tolerance := cfg.Tolerance
	if tolerance.TemperatureC <= 0 {
		tolerance.TemperatureC = 1
	}
	if tolerance.HumidityPct <= 0 {
		tolerance.HumidityPct = 5
	}
	if tolerance.CO2PPM <= 0 {
		tolerance.CO2PPM = 200
	}

	steps := cfg.DurationMinutes / stepMinutes
	stepHours := float64(stepMinutes) / 60.0

	state := clampAndRound(room.State)
	stepped := room
	stepped.Devices = make([]domain.Device, len(room.Devices))
	prevOn := make([]bool, len(room.Devices))

	var (
		energyKWh  float64
		cycles     int
		deviations = make([]float64, 0, steps)
	)

	for i := 0; i < steps; i++ {
		cerr := controlError{
			heat:     (*cfg.Target.TemperatureC - state.TemperatureC) / tolerance.TemperatureC,
			humidify: (*cfg.Target.HumidityPct - state.HumidityPct) / tolerance.HumidityPct,
			scrub:    (state.CO2PPM - *cfg.Target.CO2PPM) / tolerance.CO2PPM,
		}
		u := ctrl.decide(cerr, stepHours)

		for j, device := range room.Devices {
			stepped.Devices[j] = device
			intensity, actuated := intensityFor(device, u)
			if !actuated {
				if device.Status == domain.DeviceOn {
					energyKWh += device.PowerWatts * stepHours / 1000
				}
				continue
			}
			on := intensity > 0
			if on {
				stepped.Devices[j].Status = domain.DeviceOn
				stepped.Devices[j].EffectRate = device.EffectRate * intensity
				energyKWh += device.PowerWatts * intensity * stepHours / 1000
			} else {
				stepped.Devices[j].Status = domain.DeviceOff
			}
			if on && !prevOn[j] {
				cycles++
			}
			prevOn[j] = on
		}

		state = StepEnvironment(stepped, state, stepMinutes)

		deviations = append(deviations, normalizedDeviation(state, cfg.Target, tolerance))
	}

	report := domain.LoopStabilityReport{
		RoomID:          room.ID,
		DurationMinutes: cfg.DurationMinutes,
		ActuationCycles: cycles,
		EnergyKWh:       round3(energyKWh),
	}

	if len(deviations) == 0 {
		report.Stability = domain.StabilityStable
		return report, nil
	}

	var sum, maxDev float64
	for _, d := range deviations {
		sum += d
		maxDev = math.Max(maxDev, d)
	}
	report.AvgDeviation = round3(sum / float64(len(deviations)))
	report.MaxDeviation = round3(maxDev)

	report.Stability, report.OscillationFrequency = classifyLoop(deviations, cfg.DurationMinutes)
	report.Recommendations = loopRecommendations(report, deviations, steps)
	return report, nil
}

func normalizedDeviation(state domain.EnvironmentalState, target domain.TargetEnvironment, tol domain.ControlTolerance) float64 {
	d := math.Abs(state.TemperatureC-*target.TemperatureC) / tol.TemperatureC
	d = math.Max(d, math.Abs(state.HumidityPct-*target.HumidityPct)/tol.HumidityPct)
	return math.Max(d, math.Abs(state.CO2PPM-*target.CO2PPM)/tol.CO2PPM)
}

// classifyLoop judges the deviation trace. The settling window ends at the
// first sample inside tolerance: stable when the loop never leaves the band
// again, oscillating when the trace keeps crossing the band, unstable when
// the target is never reached or the loop exits the band for good.
func classifyLoop(deviations []float64, durationMinutes int) (domain.StabilityClass, *float64) {
	settled := -1
	for i, d := range deviations {
		if d <= 1 {
			settled = i
			break
		}
	}
	if settled == -1 {
		return domain.StabilityUnstable, nil
	}

	stable := true
	for _, d := range deviations[settled:] {
		if d > 1 {
			stable = false
			break
		}
	}
	if stable {
		return domain.StabilityStable, nil
	}

	crossings := 0
	for i := 1; i < len(deviations); i++ {
		if (deviations[i] > 1) != (deviations[i-1] > 1) {
			crossings++
		}
	}
	if crossings >= 3 {
		hours := float64(durationMinutes) / 60.0
		freq := round3(float64(crossings) / 2 / hours)
		return domain.StabilityOscillating, &freq
	}
	return domain.StabilityUnstable, nil
}

func loopRecommendations(report domain.LoopStabilityReport, deviations []float64, steps int) []string {
	var recs []string
	switch report.Stability {
	case domain.StabilityOscillating:
		recs = append(recs, "reduce actuator gain or widen the tolerance band to damp oscillation")
	case domain.StabilityUnstable:
		everWithin := false
		for _, d := range deviations {
			if d <= 1 {
				everWithin = true
				break
			}
		}
		if everWithin {
			recs = append(recs, "retune the control loop; deviation does not settle within tolerance")
		} else {
			recs = append(recs, "increase device capacity; the room never reached the target band")
		}
	}
	if steps > 0 && report.ActuationCycles > steps/2 {
		recs = append(recs, "actuators cycle nearly every step; add hysteresis or slow the control interval")
	}
	return recs
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
