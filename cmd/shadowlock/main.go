package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Mindburn-Labs/shadowlock/pkg/artifacts"
	"github.com/Mindburn-Labs/shadowlock/pkg/config"
	"github.com/Mindburn-Labs/shadowlock/pkg/guardian"
	"github.com/Mindburn-Labs/shadowlock/pkg/observability"
	"github.com/Mindburn-Labs/shadowlock/pkg/receipts"
	"github.com/Mindburn-Labs/shadowlock/pkg/store"
)

// Set with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	cfg := config.Load()
	slog.SetDefault(newLogger(cfg, stderr))

	switch args[1] {
	case "verify":
		return runVerifyCmd(cfg, args[2:], stdout, stderr)
	case "decode":
		return runDecodeCmd(args[2:], stdout, stderr)
	case "conform", "conformance":
		return runConformCmd(args[2:], stdout, stderr)
	case "receipts":
		return runReceiptsCmd(cfg, args[2:], stdout, stderr)
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "shadowlock %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "shadowlock %s\n", version)
	_, _ = fmt.Fprintln(w, "Shadow-lock transaction policy verifier.")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "USAGE:")
	_, _ = fmt.Fprintln(w, "  shadowlock <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	printCommand(w, "verify", "Verify a transaction fixture (--tx, --json, --cbor-out, --attest)")
	printCommand(w, "decode", "Decode a policy descriptor (--policy, --json)")
	printCommand(w, "conform", "Run conformance vectors (--dir, --json)")
	printCommand(w, "receipts", "List stored receipts (--limit, --json)")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	_, _ = fmt.Fprintln(w, "")
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %-10s %s\n", name, desc)
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// services is the wired runtime behind verify and receipts.
type services struct {
	guardian *guardian.Guardian
	signer   *receipts.Ed25519Signer
	receipts store.ReceiptStore
	obs      *observability.Provider
}

func newSigner(cfg *config.Config) (*receipts.Ed25519Signer, error) {
	if cfg.SigningKeySeed == "" {
		return receipts.NewEd25519Signer(cfg.SignerID)
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(cfg.SigningKeySeed, "0x"))
	if err != nil {
		return nil, fmt.Errorf("SIGNING_KEY_SEED: %w", err)
	}
	return receipts.NewEd25519SignerFromSeed(seed, cfg.SignerID)
}

func newServices(ctx context.Context, cfg *config.Config) (*services, error) {
	signer, err := newSigner(cfg)
	if err != nil {
		return nil, err
	}

	obs := observability.Noop()
	if cfg.OTelEnabled {
		oc := observability.DefaultConfig()
		oc.ServiceVersion = version
		oc.OTLPEndpoint = cfg.OTelEndpoint
		oc.Insecure = cfg.OTelInsecure
		if obs, err = observability.New(ctx, oc); err != nil {
			return nil, err
		}
	}

	rs, err := store.Open(ctx, cfg)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	archive, err := artifacts.NewStoreFromEnv(ctx)
	if err != nil {
		_ = rs.Close()
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	g := guardian.NewGuardian(signer)
	g.SetReceiptStore(rs)
	g.SetObservability(obs)
	g.SetLogger(slog.Default().With("component", "guardian"))
	if archive != nil {
		g.SetArchive(archive)
	}

	return &services{guardian: g, signer: signer, receipts: rs, obs: obs}, nil
}

func (s *services) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.receipts.Close()
	_ = s.obs.Shutdown(ctx)
}
