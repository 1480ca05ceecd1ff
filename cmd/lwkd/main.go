// Command lwkd is the reference CLI driving the Liquid watch-only wallet
// engine end to end: it parses a CT descriptor, scans a backend, and prints
// the resulting balance and wollet_status, exercising every layer from
// descriptor through wollet in one run.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/decred/slog"
	"github.com/jessevdk/go-flags"
	"github.com/lwk-go/lwk/backend"
	"github.com/lwk-go/lwk/backend/electrum"
	"github.com/lwk-go/lwk/backend/waterfalls"
	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/internal/logmgr"
	"github.com/lwk-go/lwk/wollet"
)

func main() {
	if err := run(); err != nil {
		if _, ok := err.(*flags.Error); ok {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "lwkd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logmgr.SetupLogging(slog.LevelInfo, os.Stderr)

	network, err := parseNetwork(cfg.Network)
	if err != nil {
		return err
	}

	desc, err := descriptor.Parse(cfg.Descriptor)
	if err != nil {
		return fmt.Errorf("parsing descriptor: %w", err)
	}

	w, err := wollet.Open(cfg.DataDir, network, desc)
	if err != nil {
		return fmt.Errorf("opening wallet store: %w", err)
	}
	defer w.Store().Close()

	be, err := openBackend(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := w.Scan(ctx, be); err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	balances, err := w.Balance()
	if err != nil {
		return fmt.Errorf("reading balance: %w", err)
	}

	fmt.Printf("wollet_status=%d\n", w.Store().Checksum())
	if len(balances) == 0 {
		fmt.Println("(no balance)")
		return nil
	}
	for asset, sat := range balances {
		fmt.Printf("%s: %d sat\n", hex.EncodeToString(asset[:]), sat)
	}
	return nil
}

func parseNetwork(s string) (descriptor.Network, error) {
	switch s {
	case "liquid":
		return descriptor.Liquid, nil
	case "liquidtestnet":
		return descriptor.LiquidTestnet, nil
	case "regtest":
		return descriptor.ElementsRegtest, nil
	default:
		return 0, fmt.Errorf("unknown network %q", s)
	}
}

func openBackend(cfg *config) (backend.Backend, error) {
	if cfg.ElectrumAddr != "" {
		return electrum.New(electrum.Config{Addr: cfg.ElectrumAddr, TLS: true})
	}
	return waterfalls.New(cfg.WaterfallsURL), nil
}
