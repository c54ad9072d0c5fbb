package sim

import (
	"errors"
	"math"
	"strings"
	"testing"

	"growcore/pkg/domain"
)

func loopConfig(mutators ...func(*domain.ControlLoopConfig)) domain.ControlLoopConfig {
	cfg := domain.ControlLoopConfig{
		DurationMinutes: 120,
		StepMinutes:     1,
		Strategy:        domain.StrategyPID,
		Target: domain.TargetEnvironment{
			TemperatureC: ptr(22),
			HumidityPct:  ptr(60),
			CO2PPM:       ptr(800),
		},
		Tolerance: domain.ControlTolerance{TemperatureC: 1, HumidityPct: 5, CO2PPM: 200},
	}
	for _, m := range mutators {
		m(&cfg)
	}
	return cfg
}

func TestRunClosedLoopValidation(t *testing.T) {
	cases := []struct {
		name string
		room domain.Room
		cfg  domain.ControlLoopConfig
		want error
	}{
		{name: "zero_volume", room: testRoom(func(r *domain.Room) { r.VolumeM3 = 0 }), cfg: loopConfig(), want: ErrInvalidVolume},
		{name: "zero_duration", room: testRoom(), cfg: loopConfig(func(c *domain.ControlLoopConfig) { c.DurationMinutes = 0 }), want: ErrInvalidDuration},
		{name: "negative_step", room: testRoom(), cfg: loopConfig(func(c *domain.ControlLoopConfig) { c.StepMinutes = -2 }), want: ErrInvalidStep},
		{name: "incomplete_target", room: testRoom(), cfg: loopConfig(func(c *domain.ControlLoopConfig) { c.Target.CO2PPM = nil }), want: ErrMissingTarget},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := RunClosedLoop(tc.room, tc.cfg); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	t.Run("unknown_strategy", func(t *testing.T) {
		_, err := RunClosedLoop(testRoom(), loopConfig(func(c *domain.ControlLoopConfig) { c.Strategy = "fuzzy" }))
		if err == nil || !strings.Contains(err.Error(), "unknown control strategy") {
			t.Fatalf("expected unknown-strategy error, got %v", err)
		}
	})

	t.Run("zero_step_defaults_to_one_minute", func(t *testing.T) {
		if _, err := RunClosedLoop(testRoom(func(r *domain.Room) {
			r.Devices = []domain.Device{{ID: "h", Type: domain.DeviceHeater, PowerWatts: 500, EffectRate: 2}}
		}), loopConfig(func(c *domain.ControlLoopConfig) { c.StepMinutes = 0 })); err != nil {
			t.Fatalf("zero step must default, got %v", err)
		}
	})
}

func TestRunClosedLoopPIDHoldsNearTarget(t *testing.T) {
	// 21.6C with a 22C target and 1C tolerance starts inside the band; the
	// heater only needs to offset ambient drift.
	room := testRoom(func(r *domain.Room) {
		r.State.TemperatureC = 21.6
		r.Devices = []domain.Device{{ID: "h", Type: domain.DeviceHeater, Status: domain.DeviceOff, PowerWatts: 800, EffectRate: 2}}
	})
	report, err := RunClosedLoop(room, loopConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Stability != domain.StabilityStable {
		t.Fatalf("expected stable loop, got %s (max deviation %.3f)", report.Stability, report.MaxDeviation)
	}
	if report.MaxDeviation > 1 {
		t.Fatalf("expected loop to stay within tolerance, max deviation %.3f", report.MaxDeviation)
	}
	if report.OscillationFrequency != nil {
		t.Fatalf("stable loop must not report an oscillation frequency, got %.3f", *report.OscillationFrequency)
	}
	if report.EnergyKWh <= 0 {
		t.Fatal("heater offsetting drift must consume energy")
	}
}

func TestRunClosedLoopBangBangTightToleranceOscillates(t *testing.T) {
	// A 0.2C tolerance band with a strong heater and ambient drift produces a
	// sawtooth that keeps crossing the band edge.
	room := testRoom(func(r *domain.Room) {
		r.Devices = []domain.Device{{ID: "h", Type: domain.DeviceHeater, Status: domain.DeviceOff, PowerWatts: 800, EffectRate: 3}}
	})
	cfg := loopConfig(func(c *domain.ControlLoopConfig) {
		c.DurationMinutes = 240
		c.Strategy = domain.StrategyBangBang
		c.Target = domain.TargetEnvironment{TemperatureC: ptr(20), HumidityPct: ptr(60), CO2PPM: ptr(800)}
		c.Tolerance = domain.ControlTolerance{TemperatureC: 0.2, HumidityPct: 50, CO2PPM: 5000}
	})
	report, err := RunClosedLoop(room, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Stability != domain.StabilityOscillating {
		t.Fatalf("expected oscillating loop, got %s", report.Stability)
	}
	if report.OscillationFrequency == nil || *report.OscillationFrequency <= 0 {
		t.Fatalf("oscillating loop must report a positive frequency, got %v", report.OscillationFrequency)
	}
	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "widen the tolerance band") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected damping recommendation, got %v", report.Recommendations)
	}
}

func TestRunClosedLoopUnreachableTarget(t *testing.T) {
	// The heater's effect rate never overcomes drift, so the 35C target stays
	// out of reach for the whole run.
	room := testRoom(func(r *domain.Room) {
		r.Devices = []domain.Device{
			{ID: "h", Type: domain.DeviceHeater, Status: domain.DeviceOff, PowerWatts: 1000, EffectRate: 0.1},
			{ID: "s", Type: domain.DeviceSensor, Status: domain.DeviceOn, PowerWatts: 5},
		}
	})
	cfg := loopConfig(func(c *domain.ControlLoopConfig) {
		c.Strategy = domain.StrategyBangBang
		c.Target = domain.TargetEnvironment{TemperatureC: ptr(35), HumidityPct: ptr(60), CO2PPM: ptr(800)}
	})
	report, err := RunClosedLoop(room, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Stability != domain.StabilityUnstable {
		t.Fatalf("expected unstable loop, got %s", report.Stability)
	}
	if report.OscillationFrequency != nil {
		t.Fatal("unstable loop must not carry an oscillation frequency")
	}
	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "increase device capacity") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected capacity recommendation, got %v", report.Recommendations)
	}
}

func TestRunClosedLoopEnergyAccounting(t *testing.T) {
	// The heater runs flat out for the full two hours (2.0 kWh) and the
	// always-on sensor adds 5W over the same window (0.01 kWh). One off-to-on
	// transition means a single actuation cycle.
	room := testRoom(func(r *domain.Room) {
		r.Devices = []domain.Device{
			{ID: "h", Type: domain.DeviceHeater, Status: domain.DeviceOff, PowerWatts: 1000, EffectRate: 0.1},
			{ID: "s", Type: domain.DeviceSensor, Status: domain.DeviceOn, PowerWatts: 5},
		}
	})
	cfg := loopConfig(func(c *domain.ControlLoopConfig) {
		c.Strategy = domain.StrategyBangBang
		c.Target = domain.TargetEnvironment{TemperatureC: ptr(35), HumidityPct: ptr(60), CO2PPM: ptr(800)}
	})
	report, err := RunClosedLoop(room, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.EnergyKWh != 2.01 {
		t.Fatalf("expected 2.01 kWh, got %.3f", report.EnergyKWh)
	}
	if report.ActuationCycles != 1 {
		t.Fatalf("expected 1 actuation cycle, got %d", report.ActuationCycles)
	}
	if report.DurationMinutes != 120 {
		t.Fatalf("expected duration 120, got %d", report.DurationMinutes)
	}
}

func TestBangBangDecide(t *testing.T) {
	ctrl := bangBangController{}
	u := ctrl.decide(controlError{heat: 1.5, humidify: 0.9, scrub: -2}, 1.0/60)
	if u.heat != 1 {
		t.Fatalf("error beyond tolerance must saturate, got %.2f", u.heat)
	}
	if u.humidify != 0 || u.scrub != 0 {
		t.Fatalf("errors within tolerance must not actuate, got %+v", u)
	}
}

func TestPIDChannelClampsOutput(t *testing.T) {
	gains := defaultPIDGains()

	var hot pidChannel
	if out := hot.update(gains, 50, 1.0/60); out != 1 {
		t.Fatalf("large error must clamp to 1, got %.3f", out)
	}

	var cold pidChannel
	if out := cold.update(gains, -50, 1.0/60); out != 0 {
		t.Fatalf("negative error must clamp to 0, got %.3f", out)
	}
}

func TestPIDIntegralAntiWindup(t *testing.T) {
	var ch pidChannel
	for i := 0; i < 1000; i++ {
		ch.update(defaultPIDGains(), 10, 1)
	}
	if math.Abs(ch.integral) > 5 {
		t.Fatalf("integral must clamp to ±5, got %.2f", ch.integral)
	}
}

func TestAdaptiveControllerDetunesOnSignFlips(t *testing.T) {
	ctrl := newAdaptiveController()
	before := ctrl.pid.gains.kp

	// Alternate the dominant error sign every step to force detuning.
	for i := 0; i < 8; i++ {
		e := 2.0
		if i%2 == 1 {
			e = -2.0
		}
		ctrl.decide(controlError{heat: e}, 1.0/60)
	}

	if ctrl.pid.gains.kp >= before {
		t.Fatalf("expected proportional gain below %.2f after sign flips, got %.2f", before, ctrl.pid.gains.kp)
	}
}

func TestRunClosedLoopDeterministic(t *testing.T) {
	room := testRoom(func(r *domain.Room) {
		r.State.TemperatureC = 19
		r.Devices = []domain.Device{
			{ID: "h", Type: domain.DeviceHeater, Status: domain.DeviceOff, PowerWatts: 900, EffectRate: 2.5},
			{ID: "f", Type: domain.DeviceFan, Status: domain.DeviceOff, PowerWatts: 45, EffectRate: 20},
		}
	})
	cfg := loopConfig(func(c *domain.ControlLoopConfig) { c.Strategy = domain.StrategyAdaptive })

	first, err := RunClosedLoop(room, cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := RunClosedLoop(room, cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Stability != second.Stability || first.EnergyKWh != second.EnergyKWh ||
		first.AvgDeviation != second.AvgDeviation || first.MaxDeviation != second.MaxDeviation {
		t.Fatalf("identical inputs produced differing reports: %+v vs %+v", first, second)
	}
}
