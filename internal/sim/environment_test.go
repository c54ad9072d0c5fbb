package sim

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"growcore/pkg/domain"
)

var testStart = time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

func testRoom(mutators ...func(*domain.Room)) domain.Room {
	room := domain.Room{
		ID:       "room-1",
		Name:     "Fruiting Room A",
		VolumeM3: 50,
		State: domain.EnvironmentalState{
			TemperatureC: 20,
			HumidityPct:  60,
			CO2PPM:       800,
			AirflowCFM:   100,
			Timestamp:    testStart,
		},
	}
	for _, m := range mutators {
		m(&room)
	}
	return room
}

func TestSimulateTimeSeriesSampleCount(t *testing.T) {
	cases := []struct {
		name     string
		duration int
		step     int
		want     int
	}{
		{name: "ten_one_minute_steps", duration: 10, step: 1, want: 11},
		{name: "uneven_division_floors", duration: 10, step: 3, want: 4},
		{name: "single_step", duration: 5, step: 5, want: 2},
		{name: "step_longer_than_duration", duration: 3, step: 10, want: 1},
	}
	model := NewEnvironmentalModel(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			curve, err := model.SimulateTimeSeries(testRoom(), tc.duration, tc.step)
			if err != nil {
				t.Fatalf("simulate: %v", err)
			}
			if got := len(curve.Samples); got != tc.want {
				t.Fatalf("expected %d samples, got %d", tc.want, got)
			}
		})
	}
}

func TestSimulateTimeSeriesValidation(t *testing.T) {
	model := NewEnvironmentalModel(nil)
	cases := []struct {
		name     string
		room     domain.Room
		duration int
		step     int
		want     error
	}{
		{name: "zero_duration", room: testRoom(), duration: 0, step: 1, want: ErrInvalidDuration},
		{name: "negative_duration", room: testRoom(), duration: -5, step: 1, want: ErrInvalidDuration},
		{name: "zero_step", room: testRoom(), duration: 10, step: 0, want: ErrInvalidStep},
		{name: "zero_volume", room: testRoom(func(r *domain.Room) { r.VolumeM3 = 0 }), duration: 10, step: 1, want: ErrInvalidVolume},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := model.SimulateTimeSeries(tc.room, tc.duration, tc.step); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAmbientDriftCoolsEmptyRoom(t *testing.T) {
	model := NewEnvironmentalModel(nil)
	curve, err := model.SimulateTimeSeries(testRoom(), 10, 1)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	final := curve.Samples[len(curve.Samples)-1]
	if final.TemperatureC >= 20 {
		t.Fatalf("expected ambient drift to cool below 20C, got %.2f", final.TemperatureC)
	}
	if curve.Stability != domain.StabilityStable {
		t.Fatalf("expected stable classification, got %s", curve.Stability)
	}
	if !curve.StartTime.Equal(testStart) {
		t.Fatalf("unexpected start time %v", curve.StartTime)
	}
	if want := testStart.Add(10 * time.Minute); !curve.EndTime.Equal(want) {
		t.Fatalf("expected end time %v, got %v", want, curve.EndTime)
	}
}

func TestHeaterTrendsAboveDriftBaseline(t *testing.T) {
	model := NewEnvironmentalModel(nil)

	baseline, err := model.SimulateTimeSeries(testRoom(), 60, 1)
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	heated, err := model.SimulateTimeSeries(testRoom(func(r *domain.Room) {
		r.Devices = []domain.Device{{ID: "h1", Type: domain.DeviceHeater, Status: domain.DeviceOn, PowerWatts: 1200, EffectRate: 0.5}}
	}), 60, 1)
	if err != nil {
		t.Fatalf("heated: %v", err)
	}

	baseFinal := baseline.Samples[len(baseline.Samples)-1].TemperatureC
	heatFinal := heated.Samples[len(heated.Samples)-1].TemperatureC
	if heatFinal <= baseFinal {
		t.Fatalf("expected heated room (%.2f) above baseline (%.2f)", heatFinal, baseFinal)
	}
}

func TestBoundsInvariantUnderExtremeDevices(t *testing.T) {
	room := testRoom(func(r *domain.Room) {
		r.Devices = []domain.Device{
			{ID: "h", Type: domain.DeviceHeater, Status: domain.DeviceOn, EffectRate: 500},
			{ID: "m", Type: domain.DeviceHumidifier, Status: domain.DeviceOn, EffectRate: 800},
			{ID: "s", Type: domain.DeviceCO2Scrubber, Status: domain.DeviceOn, EffectRate: 100000},
		}
		r.Substrate = &domain.Substrate{Type: "straw", MassKg: 20, MoisturePct: 65, CO2RatePPMHour: 90000, HeatOutputWatts: 50000}
	})
	model := NewEnvironmentalModel(nil)
	curve, err := model.SimulateTimeSeries(room, 120, 1)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for i, s := range curve.Samples {
		if s.TemperatureC < TemperatureMinC || s.TemperatureC > TemperatureMaxC {
			t.Fatalf("sample %d temperature out of bounds: %.2f", i, s.TemperatureC)
		}
		if s.HumidityPct < HumidityMinPct || s.HumidityPct > HumidityMaxPct {
			t.Fatalf("sample %d humidity out of bounds: %.2f", i, s.HumidityPct)
		}
		if s.CO2PPM < CO2MinPPM || s.CO2PPM > CO2MaxPPM {
			t.Fatalf("sample %d co2 out of bounds: %.0f", i, s.CO2PPM)
		}
	}
}

func TestFanVentsCO2(t *testing.T) {
	model := NewEnvironmentalModel(nil)
	baseline, err := model.SimulateTimeSeries(testRoom(), 30, 1)
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	fanned, err := model.SimulateTimeSeries(testRoom(func(r *domain.Room) {
		r.Devices = []domain.Device{{ID: "f", Type: domain.DeviceFan, Status: domain.DeviceOn, PowerWatts: 60, EffectRate: 25}}
	}), 30, 1)
	if err != nil {
		t.Fatalf("fanned: %v", err)
	}
	baseCO2 := baseline.Samples[len(baseline.Samples)-1].CO2PPM
	fanCO2 := fanned.Samples[len(fanned.Samples)-1].CO2PPM
	if fanCO2 >= baseCO2 {
		t.Fatalf("expected fan to vent CO2 below %.0f, got %.0f", baseCO2, fanCO2)
	}
}

func TestCalculateDeviceEffect(t *testing.T) {
	cases := []struct {
		name      string
		device    domain.Device
		volume    float64
		wantParam EffectParameter
		wantMag   float64
	}{
		{name: "heater_scales_with_volume", device: domain.Device{Type: domain.DeviceHeater, EffectRate: 1.5}, volume: 25, wantParam: ParamTemperature, wantMag: 3.0},
		{name: "humidifier_reference_volume", device: domain.Device{Type: domain.DeviceHumidifier, EffectRate: 4}, volume: 50, wantParam: ParamHumidity, wantMag: 4},
		{name: "fan_not_volume_scaled", device: domain.Device{Type: domain.DeviceFan, EffectRate: 30}, volume: 10, wantParam: ParamAirflow, wantMag: 30},
		{name: "scrubber_removes", device: domain.Device{Type: domain.DeviceCO2Scrubber, EffectRate: 100}, volume: 100, wantParam: ParamCO2, wantMag: -50},
		{name: "light_passthrough", device: domain.Device{Type: domain.DeviceLight, EffectRate: 500}, volume: 200, wantParam: ParamLight, wantMag: 500},
		{name: "sensor_no_effect", device: domain.Device{Type: domain.DeviceSensor, EffectRate: 9}, volume: 50, wantParam: ParamNone, wantMag: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			effect := CalculateDeviceEffect(tc.device, tc.volume)
			if effect.Parameter != tc.wantParam {
				t.Fatalf("expected parameter %q, got %q", tc.wantParam, effect.Parameter)
			}
			if math.Abs(effect.Magnitude-tc.wantMag) > 1e-9 {
				t.Fatalf("expected magnitude %.2f, got %.2f", tc.wantMag, effect.Magnitude)
			}
		})
	}
}

func syntheticSamples(amplitude float64, n int) []domain.EnvironmentalState {
	samples := make([]domain.EnvironmentalState, n)
	for i := range samples {
		offset := amplitude
		if i%2 == 1 {
			offset = -amplitude
		}
		samples[i] = domain.EnvironmentalState{
			TemperatureC: 20 + offset,
			HumidityPct:  60,
			CO2PPM:       800,
			Timestamp:    testStart.Add(time.Duration(i) * time.Minute),
		}
	}
	return samples
}

func TestAssessStability(t *testing.T) {
	cases := []struct {
		name    string
		samples []domain.EnvironmentalState
		want    domain.StabilityClass
	}{
		{name: "too_few_samples", samples: syntheticSamples(10, 9), want: domain.StabilityStable},
		{name: "flat_series", samples: syntheticSamples(0, 30), want: domain.StabilityStable},
		{name: "moderate_swing_drifts", samples: syntheticSamples(1.6, 30), want: domain.StabilityDrifting},
		{name: "large_swing_oscillates", samples: syntheticSamples(3, 30), want: domain.StabilityOscillating},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AssessStability(tc.samples); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func stabilityRank(c domain.StabilityClass) int {
	switch c {
	case domain.StabilityStable:
		return 0
	case domain.StabilityDrifting:
		return 1
	default:
		return 2
	}
}

func TestStabilityEscalatesMonotonicallyWithAmplitude(t *testing.T) {
	prev := -1
	for _, amplitude := range []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 4, 6} {
		rank := stabilityRank(AssessStability(syntheticSamples(amplitude, 40)))
		if rank < prev {
			t.Fatalf("classification demoted at amplitude %.1f", amplitude)
		}
		prev = rank
	}
}

func TestDetectDeviations(t *testing.T) {
	model := NewEnvironmentalModel(nil)

	t.Run("unknown_species_has_no_deviations", func(t *testing.T) {
		room := testRoom(func(r *domain.Room) { r.Species = "unknown"; r.Stage = domain.StageFruiting })
		if devs := model.DetectDeviations(room, syntheticSamples(0, 20)); devs != nil {
			t.Fatalf("expected no deviations, got %v", devs)
		}
	})

	t.Run("warm_oyster_fruiting_room_deviates", func(t *testing.T) {
		room := testRoom(func(r *domain.Room) { r.Species = "oyster"; r.Stage = domain.StageFruiting })
		samples := make([]domain.EnvironmentalState, 20)
		for i := range samples {
			// Target is 18C/85%RH/1000ppm: temperature deviates, the rest hold.
			samples[i] = domain.EnvironmentalState{TemperatureC: 22, HumidityPct: 85, CO2PPM: 1000}
		}
		devs := model.DetectDeviations(room, samples)
		if len(devs) != 1 {
			t.Fatalf("expected 1 deviation, got %d: %v", len(devs), devs)
		}
	})
}

func TestSimulateTimeSeriesDeterministic(t *testing.T) {
	room := testRoom(func(r *domain.Room) {
		r.Species = "oyster"
		r.Stage = domain.StageFruiting
		r.Devices = []domain.Device{
			{ID: "h", Type: domain.DeviceHeater, Status: domain.DeviceOn, PowerWatts: 900, EffectRate: 1.2},
			{ID: "f", Type: domain.DeviceFan, Status: domain.DeviceOn, PowerWatts: 45, EffectRate: 12},
		}
		r.Substrate = &domain.Substrate{Type: "sawdust", MassKg: 40, MoisturePct: 62, CO2RatePPMHour: 150, HeatOutputWatts: 30}
	})
	model := NewEnvironmentalModel(nil)

	first, err := model.SimulateTimeSeries(room, 90, 2)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := model.SimulateTimeSeries(room, 90, 2)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced differing curves")
	}
}
