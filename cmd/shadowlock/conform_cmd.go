package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/shadowlock/pkg/conform"
)

// runConformCmd implements `shadowlock conform`. Without --dir it runs the
// built-in vectors.
//
// Exit codes:
//
//	0 = all vectors pass
//	1 = any vector failed
//	2 = runtime error
func runConformCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("conform", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dir        string
		jsonOutput bool
	)

	cmd.StringVar(&dir, "dir", "", "Directory of *.yaml vectors (default: built-in vectors)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output report as JSON to stdout")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	var (
		report *conform.Report
		err    error
	)
	if dir == "" {
		report, err = conform.RunBuiltin(ctx)
	} else {
		report, err = conform.Run(ctx, dir)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: conformance run failed: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(report, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printConformanceReport(stdout, report)
	}

	if !report.Pass {
		return 1
	}
	return 0
}

func printConformanceReport(w io.Writer, report *conform.Report) {
	_, _ = fmt.Fprintf(w, "Shadowlock Conformance Report\n")
	_, _ = fmt.Fprintf(w, "Run ID:    %s\n", report.RunID)
	_, _ = fmt.Fprintf(w, "Timestamp: %s\n", report.Timestamp.Format("2006-01-02T15:04:05Z"))
	_, _ = fmt.Fprintf(w, "Duration:  %s\n\n", report.Duration)

	failed := 0
	for _, r := range report.Results {
		status := "PASS"
		if !r.Pass {
			status = "FAIL"
			failed++
		}
		_, _ = fmt.Fprintf(w, "  %s  %-28s %s", status, r.Vector, r.Reason)
		if r.Failure != "" {
			_, _ = fmt.Fprintf(w, "  [%s] %s", r.Failure, r.Detail)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintln(w)
	if report.Pass {
		_, _ = fmt.Fprintf(w, "Result: PASS (%d vectors)\n", len(report.Results))
	} else {
		_, _ = fmt.Fprintf(w, "Result: FAIL (%d/%d vectors failed)\n", failed, len(report.Results))
	}
}
