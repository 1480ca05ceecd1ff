package main

import (
	"fmt"

	"github.com/jessevdk/go-flags"
)

// config mirrors degeri-dcrlnd/cmd/dcrlncli's flag-struct convention: one
// struct, jessevdk/go-flags tags, parsed once in main.
type config struct {
	Network       string `long:"network" description:"liquid, liquidtestnet or regtest" default:"liquidtestnet"`
	DataDir       string `long:"datadir" description:"directory holding the encrypted wallet cache" default:"./lwkd-data"`
	Descriptor    string `long:"descriptor" description:"CT descriptor string, e.g. ct(slip77(...),elwpkh(...))" required:"true"`
	ElectrumAddr  string `long:"electrum-addr" description:"host:port of an Electrs/electrum server"`
	WaterfallsURL string `long:"waterfalls-url" description:"base URL of a waterfalls HTTP backend"`
}

func loadConfig() (*config, error) {
	cfg := &config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	if cfg.ElectrumAddr == "" && cfg.WaterfallsURL == "" {
		return nil, fmt.Errorf("one of --electrum-addr or --waterfalls-url is required")
	}
	return cfg, nil
}
