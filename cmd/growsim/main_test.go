package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"growcore/pkg/domain"
)

func writeScenarioFile(t *testing.T) string {
	t.Helper()
	scenario := domain.SimulationScenario{
		Name:            "cli smoke",
		Type:            domain.ScenarioBaseline,
		Mode:            domain.ModeTimeSeries,
		DurationMinutes: 30,
		Rooms: []domain.Room{{
			ID:       "room-1",
			Name:     "fruiting 1",
			Species:  "oyster",
			Stage:    domain.StageFruiting,
			VolumeM3: 50,
			State:    domain.EnvironmentalState{TemperatureC: 20, HumidityPct: 60, CO2PPM: 800, AirflowCFM: 100},
		}},
	}
	data, err := json.Marshal(scenario)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "scenario.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRunPrintsReport(t *testing.T) {
	t.Setenv("GROWCORE_STORAGE_DRIVER", "memory")
	var stdout, stderr bytes.Buffer

	code := run([]string{"growsim", "-scenario", writeScenarioFile(t)}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, stderr.String())
	}

	var report domain.SimulationReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.ID == "" || len(report.Curves) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !strings.Contains(report.Summary, "model-based projection") {
		t.Fatalf("summary missing disclaimer: %q", report.Summary)
	}
}

func TestRunRequiresScenarioFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"growsim"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "-scenario is required") {
		t.Fatalf("expected usage error, got %q", stderr.String())
	}
}

func TestRunRejectsInvalidScenario(t *testing.T) {
	t.Setenv("GROWCORE_STORAGE_DRIVER", "memory")
	scenario := domain.SimulationScenario{
		Name:            "broken",
		Type:            domain.ScenarioBaseline,
		Mode:            domain.ModeTimeSeries,
		DurationMinutes: 0,
		Rooms:           []domain.Room{{ID: "room-1", VolumeM3: 50}},
	}
	data, _ := json.Marshal(scenario)
	path := filepath.Join(t.TempDir(), "scenario.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"growsim", "-scenario", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "duration must be positive") {
		t.Fatalf("expected validation message, got %q", stderr.String())
	}
}
