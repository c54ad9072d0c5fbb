// Command growsim loads a scenario definition from a JSON file, registers it,
// runs the simulation, and prints the resulting report as JSON. The storage
// and blob backends are selected through GROWCORE_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"growcore/internal/blob"
	"growcore/internal/core"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("growsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	scenarioPath := fs.String("scenario", "", "path to a scenario definition JSON file (required)")
	storageDriver := fs.String("storage", "", "storage driver override: memory|sqlite|postgres")
	export := fs.Bool("export", false, "export the report JSON to the configured blob store")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if *scenarioPath == "" {
		fmt.Fprintln(stderr, "growsim: -scenario is required")
		fs.Usage()
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))
	ctx := context.Background()

	data, err := os.ReadFile(*scenarioPath)
	if err != nil {
		fmt.Fprintf(stderr, "growsim: read scenario: %v\n", err)
		return 1
	}
	var scenario core.SimulationScenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		fmt.Fprintf(stderr, "growsim: decode scenario: %v\n", err)
		return 1
	}

	if *storageDriver != "" {
		if err := os.Setenv("GROWCORE_STORAGE_DRIVER", *storageDriver); err != nil {
			fmt.Fprintf(stderr, "growsim: %v\n", err)
			return 1
		}
	}
	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		fmt.Fprintf(stderr, "growsim: open store: %v\n", err)
		return 1
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	svc := core.NewService(store, core.WithLogger(logger))

	created, res, err := svc.CreateScenario(ctx, scenario)
	if err != nil {
		fmt.Fprintf(stderr, "growsim: create scenario: %v\n", err)
		for _, violation := range res.Violations {
			fmt.Fprintf(stderr, "  %s: %s\n", violation.Rule, violation.Message)
		}
		return 1
	}
	for _, warning := range res.Warnings() {
		fmt.Fprintf(stderr, "growsim: warning: %s\n", warning)
	}

	report, _, err := svc.RunSimulation(ctx, created.ID)
	if err != nil {
		fmt.Fprintf(stderr, "growsim: run simulation: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(stderr, "growsim: encode report: %v\n", err)
		return 1
	}

	if *export {
		blobStore, err := blob.Open(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "growsim: open blob store: %v\n", err)
			return 1
		}
		info, err := core.NewReportExporter(blobStore).Export(ctx, report)
		if err != nil {
			fmt.Fprintf(stderr, "growsim: export report: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "growsim: report exported to %s\n", info.Key)
	}
	return 0
}
