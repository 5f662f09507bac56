package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/shadowlock/pkg/config"
	"github.com/Mindburn-Labs/shadowlock/pkg/store"
)

// runReceiptsCmd implements `shadowlock receipts`, newest first.
func runReceiptsCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("receipts", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		limit      int
		jsonOutput bool
	)

	cmd.IntVar(&limit, "limit", 20, "Maximum receipts to list (0 for all)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output receipts as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	rs, err := store.Open(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = rs.Close() }()

	list, err := rs.List(ctx, limit)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(list, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(stdout, "No receipts.")
		return 0
	}
	for _, r := range list {
		verdict := "ALLOW"
		if !r.Allowed {
			verdict = "DENY "
		}
		_, _ = fmt.Fprintf(stdout, "%s  %s  %s  %-38s %s\n",
			r.Timestamp.Format("2006-01-02T15:04:05Z"), r.ReceiptID, verdict, r.Reason, r.TxDigest)
	}
	return 0
}
