package sim

import (
	"time"

	"growcore/pkg/domain"
)

// Environmental defaults applied by BuildRoom when no override is supplied.
const (
	DefaultVolumeM3     = 50.0
	DefaultTemperatureC = 20.0
	DefaultHumidityPct  = 60.0
	DefaultCO2PPM       = 800.0
	DefaultAirflowCFM   = 100.0
	DefaultLightLux     = 0.0
)

// EnvironmentOverrides selectively replaces initial environmental defaults.
// Nil fields keep the default.
type EnvironmentOverrides struct {
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	HumidityPct  *float64 `json:"humidity_pct,omitempty"`
	CO2PPM       *float64 `json:"co2_ppm,omitempty"`
	AirflowCFM   *float64 `json:"airflow_cfm,omitempty"`
	LightLux     *float64 `json:"light_lux,omitempty"`
}

// RoomConfig is the facility configuration record a room snapshot is built from.
type RoomConfig struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Species   string                `json:"species,omitempty"`
	Stage     domain.GrowthStage    `json:"stage,omitempty"`
	VolumeM3  float64               `json:"volume_m3,omitempty"`
	Devices   []domain.Device       `json:"devices,omitempty"`
	Substrate *domain.Substrate     `json:"substrate,omitempty"`
	Initial   *EnvironmentOverrides `json:"initial,omitempty"`
}

// BuildRoom assembles a fully-populated room snapshot from a configuration
// record, applying volume and environmental defaults. The builder is a pure
// factory; callers do not re-validate its output.
func BuildRoom(cfg RoomConfig, now time.Time) domain.Room {
	volume := cfg.VolumeM3
	if volume <= 0 {
		volume = DefaultVolumeM3
	}

	state := domain.EnvironmentalState{
		TemperatureC: DefaultTemperatureC,
		HumidityPct:  DefaultHumidityPct,
		CO2PPM:       DefaultCO2PPM,
		AirflowCFM:   DefaultAirflowCFM,
		LightLux:     DefaultLightLux,
		Timestamp:    now,
	}
	if ov := cfg.Initial; ov != nil {
		if ov.TemperatureC != nil {
			state.TemperatureC = *ov.TemperatureC
		}
		if ov.HumidityPct != nil {
			state.HumidityPct = *ov.HumidityPct
		}
		if ov.CO2PPM != nil {
			state.CO2PPM = *ov.CO2PPM
		}
		if ov.AirflowCFM != nil {
			state.AirflowCFM = *ov.AirflowCFM
		}
		if ov.LightLux != nil {
			state.LightLux = *ov.LightLux
		}
	}

	devices := make([]domain.Device, len(cfg.Devices))
	copy(devices, cfg.Devices)
	for i := range devices {
		if devices[i].Status == "" {
			devices[i].Status = domain.DeviceOff
		}
	}

	var substrate *domain.Substrate
	if cfg.Substrate != nil {
		cp := *cfg.Substrate
		substrate = &cp
	}

	return domain.Room{
		ID:        cfg.ID,
		Name:      cfg.Name,
		Species:   cfg.Species,
		Stage:     cfg.Stage,
		VolumeM3:  volume,
		Devices:   devices,
		Substrate: substrate,
		State:     state,
	}
}
