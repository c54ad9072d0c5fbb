package sim

import (
	"math"

	"growcore/pkg/domain"
)

// Disclaimer appended to every contamination rationale and report summary.
const RiskDisclaimer = "This is a model-based projection, not a real-world guarantee."

// Risk factor trigger thresholds.
const (
	highHumidityThresholdPct      = 90.0
	poorAirflowThresholdCFM       = 50.0
	stagnantCO2ThresholdPPM       = 3000.0
	stagnantAirflowThresholdCFM   = 80.0
	fluctuationConcernC           = 5.0
	substrateMoistureThresholdPct = 70.0
	minFluctuationHistory         = 10
)

// AnalyzeRiskFactors extracts contamination risk factors from a room's current
// state and, optionally, its environmental trajectory. History with 10 or
// fewer points contributes no temperature-fluctuation signal.
func AnalyzeRiskFactors(room domain.Room, history []domain.EnvironmentalState) domain.RiskFactors {
	state := room.State
	factors := domain.RiskFactors{}

	factors.HighHumidity = state.HumidityPct > highHumidityThresholdPct

	fanRunning := false
	for _, device := range room.Devices {
		if device.Type == domain.DeviceFan && device.Status == domain.DeviceOn {
			fanRunning = true
			break
		}
	}
	factors.PoorAirflow = !fanRunning || state.AirflowCFM < poorAirflowThresholdCFM

	factors.StagnantAir = state.CO2PPM > stagnantCO2ThresholdPPM && state.AirflowCFM < stagnantAirflowThresholdCFM

	if len(history) > minFluctuationHistory {
		minTemp, maxTemp := history[0].TemperatureC, history[0].TemperatureC
		for _, s := range history[1:] {
			minTemp = math.Min(minTemp, s.TemperatureC)
			maxTemp = math.Max(maxTemp, s.TemperatureC)
		}
		factors.TemperatureFluctuationC = maxTemp - minTemp
	}

	factors.HighSubstrateMoisture = room.Substrate != nil && room.Substrate.MoisturePct > substrateMoistureThresholdPct

	spore := 0.0
	if state.HumidityPct > 85 {
		spore += 20
	}
	if state.TemperatureC > 20 && state.TemperatureC < 28 {
		spore += 15
	}
	if factors.PoorAirflow {
		spore += 25
	}
	if factors.TemperatureFluctuationC > fluctuationConcernC {
		spore += 10
	}
	if factors.HighSubstrateMoisture {
		spore += 15
	}
	factors.SporeLoadEstimate = clamp(spore, 0, 100)

	return factors
}

// Risk category boundaries on the 0-100 score.
const (
	riskHighThreshold   = 70
	riskMediumThreshold = 40
)

// CalculateRiskScore folds the triggered factors into an integer score in [0,100].
func CalculateRiskScore(factors domain.RiskFactors) int {
	score := 0.0
	if factors.HighHumidity {
		score += 20
	}
	if factors.PoorAirflow {
		score += 25
	}
	score += 0.3 * factors.SporeLoadEstimate
	if factors.StagnantAir {
		score += 15
	}
	score += math.Min(2*factors.TemperatureFluctuationC, 20)
	return int(math.Round(clamp(score, 0, 100)))
}

func riskLevelForScore(score int) domain.RiskLevel {
	switch {
	case score >= riskHighThreshold:
		return domain.RiskHigh
	case score >= riskMediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// AssessContaminationRisk translates a room's current or historical readings
// into a bounded, explainable risk signal. The result is fully reproducible
// from (room, history) alone.
func AssessContaminationRisk(room domain.Room, history []domain.EnvironmentalState) domain.ContaminationRiskMap {
	factors := AnalyzeRiskFactors(room, history)
	score := CalculateRiskScore(factors)

	var recommendations, rationale []string
	if factors.HighHumidity {
		rationale = append(rationale, "humidity above 90%RH sustains condensation films where competitor molds germinate")
		recommendations = append(recommendations, "lower relative humidity below 90% during non-misting periods")
	}
	if factors.PoorAirflow {
		rationale = append(rationale, "airflow below 50 CFM or no running fan leaves spore-laden air undisturbed")
		recommendations = append(recommendations, "run a fan continuously or raise air exchange above 50 CFM")
	}
	if factors.StagnantAir {
		rationale = append(rationale, "CO2 above 3000 ppm with low airflow indicates stagnant, unexchanged air")
		recommendations = append(recommendations, "increase fresh air exchange to vent CO2 below 3000 ppm")
	}
	if factors.TemperatureFluctuationC > fluctuationConcernC {
		rationale = append(rationale, "temperature swings above 5°C stress the culture and favor opportunists")
		recommendations = append(recommendations, "stabilize temperature control to hold swings under 5°C")
	}
	if factors.HighSubstrateMoisture {
		rationale = append(rationale, "substrate moisture above 70% favors bacterial blotch and trichoderma")
		recommendations = append(recommendations, "reduce substrate field capacity below 70% moisture")
	}
	if len(rationale) == 0 {
		rationale = append(rationale, "conditions favorable: no contamination risk factor triggered")
	}
	rationale = append(rationale, RiskDisclaimer)

	return domain.ContaminationRiskMap{
		RoomID:          room.ID,
		Level:           riskLevelForScore(score),
		Score:           score,
		Factors:         factors,
		Recommendations: recommendations,
		Rationale:       rationale,
	}
}
