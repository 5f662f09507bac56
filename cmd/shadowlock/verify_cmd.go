package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Mindburn-Labs/shadowlock/pkg/config"
	"github.com/Mindburn-Labs/shadowlock/pkg/receipts"
	"github.com/Mindburn-Labs/shadowlock/pkg/txfile"
)

const attestationTTL = 24 * time.Hour

// verifyOutput is the --json shape of `shadowlock verify`.
type verifyOutput struct {
	Receipt     *receipts.Receipt `json:"receipt"`
	PublicKey   string            `json:"public_key"`
	Attestation string            `json:"attestation,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// runVerifyCmd implements `shadowlock verify`.
//
// Exit codes:
//
//	0 = transition authorized
//	1 = transition rejected by a policy rule
//	2 = runtime or structural error
func runVerifyCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		txPath     string
		jsonOutput bool
		cborOut    string
		attest     bool
	)

	cmd.StringVar(&txPath, "tx", "", "Path to transaction fixture, YAML or JSON (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output receipt as JSON")
	cmd.StringVar(&cborOut, "cbor-out", "", "Write the receipt as canonical CBOR to this file")
	cmd.BoolVar(&attest, "attest", false, "Issue a signed attestation token for the receipt")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if txPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --tx is required")
		return 2
	}

	raw, err := os.ReadFile(txPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	doc, err := txfile.Parse(raw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	svc, err := newServices(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer svc.Close()

	rcpt, checkErr := svc.guardian.Check(ctx, doc, raw)
	if rcpt == nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", checkErr)
		return 2
	}

	out := verifyOutput{Receipt: rcpt, PublicKey: svc.signer.PublicKey()}
	if checkErr != nil {
		out.Error = checkErr.Error()
	}
	if attest {
		token, err := svc.signer.Attest(rcpt, attestationTTL)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: attest: %v\n", err)
			return 2
		}
		out.Attestation = token
	}
	if cborOut != "" {
		data, err := receipts.EncodeCBOR(rcpt)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: cbor: %v\n", err)
			return 2
		}
		if err := os.WriteFile(cborOut, data, 0600); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printReceipt(stdout, rcpt)
		if out.Attestation != "" {
			_, _ = fmt.Fprintf(stdout, "Attestation: %s\n", out.Attestation)
		}
		if out.Error != "" {
			_, _ = fmt.Fprintf(stdout, "Error:       %s\n", out.Error)
		}
	}

	switch {
	case checkErr != nil:
		return 2
	case !rcpt.Allowed:
		return 1
	default:
		return 0
	}
}

func printReceipt(w io.Writer, r *receipts.Receipt) {
	verdict := "ALLOW"
	if !r.Allowed {
		verdict = "DENY"
	}
	_, _ = fmt.Fprintf(w, "Verdict:     %s (%s, code %d)\n", verdict, r.Reason, r.Code)
	_, _ = fmt.Fprintf(w, "Receipt:     %s\n", r.ReceiptID)
	_, _ = fmt.Fprintf(w, "Tx digest:   %s\n", r.TxDigest)
	_, _ = fmt.Fprintf(w, "Policy:      %s\n", r.PolicyHex)
	for _, c := range r.Checks {
		status := "pass"
		switch {
		case !c.Enabled:
			status = "off"
		case !c.Pass:
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(w, "  %-4s  %-13s %s\n", status, c.Rule, c.Detail)
	}
	_, _ = fmt.Fprintf(w, "Decision:    %s\n", r.DecisionHash)
	_, _ = fmt.Fprintf(w, "Signer:      %s\n", r.SignerID)
}
