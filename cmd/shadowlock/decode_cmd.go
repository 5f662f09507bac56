package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/shadowlock/pkg/policy"
	"github.com/Mindburn-Labs/shadowlock/pkg/record"
	"github.com/Mindburn-Labs/shadowlock/pkg/shadowlock"
)

// runDecodeCmd implements `shadowlock decode`. A descriptor that does not
// decode exits 1 and reports its reason code.
func runDecodeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("decode", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		policyHex  string
		jsonOutput bool
	)

	cmd.StringVar(&policyHex, "policy", "", "Policy descriptor bytes as hex (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output descriptor as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if policyHex == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --policy is required")
		return 2
	}

	raw, err := record.DecodeHex(policyHex)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	d, err := policy.Decode(raw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %s: %v\n", shadowlock.Reason(err), err)
		return 1
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(d, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "Flags:     %s\n", d.Flags)
	_, _ = fmt.Fprintf(stdout, "Delegate:  %s %s\n", d.DelegateTarget(), d.Reference)
	if d.DataHash != nil {
		_, _ = fmt.Fprintf(stdout, "Data hash: %s\n", d.DataHash)
	}
	return 0
}
