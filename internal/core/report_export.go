package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"growcore/internal/blob"
)

// ReportExporter serializes simulation reports to JSON and stores them in a
// blob store under reports/<id>.json.
type ReportExporter struct {
	blobs blob.Store
}

// NewReportExporter constructs an exporter writing to the supplied blob store.
func NewReportExporter(store blob.Store) *ReportExporter {
	return &ReportExporter{blobs: store}
}

// Export stores the report and returns the resulting blob info. Blob stores
// are create-only, so exporting the same report twice fails.
func (e *ReportExporter) Export(ctx context.Context, report SimulationReport) (blob.Info, error) {
	if report.ID == "" {
		return blob.Info{}, fmt.Errorf("report has no id")
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return blob.Info{}, err
	}
	key := path.Join("reports", report.ID+".json")
	return e.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"scenario_id": report.ScenarioID},
	})
}
