package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Network string `env:"CMD_TEST_NETWORK" envDefault:"testnet"`
	OutDir  string `env:"CMD_TEST_OUT_DIR" envDefault:"nft"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_NETWORK", "preview")
	t.Setenv("CMD_TEST_OUT_DIR", "env-out")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Network, "network", cfgRef.Network, "network")
	fs.StringVar(&cfgRef.OutDir, "out", cfgRef.OutDir, "out")

	if err := ParseArgs(fs, []string{"-network", "mainnet"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Network != "mainnet" {
		t.Fatalf("expected flag value for network, got %q", cfgRef.Network)
	}
	if cfgRef.OutDir != "env-out" {
		t.Fatalf("expected env default out dir, got %q", cfgRef.OutDir)
	}
}

func TestParseConfigFromArgsReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_NETWORK", "preprod")
	t.Setenv("CMD_TEST_OUT_DIR", "configarg-out")

	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs := flag.NewFlagSet("configargs", flag.ContinueOnError)
	fs.StringVar(&cfgRef.Network, "network", cfgRef.Network, "network")
	if err := ParseArgs(fs, nil); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if cfgRef.Network != "preprod" {
		t.Fatalf("expected env network, got %q", cfgRef.Network)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceGenerate, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("NFTGEN_OTEL_ENDPOINT", "")
	want := errors.New("boom")
	err := RunWithTelemetry(context.Background(), ServiceGenerate, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected run error, got %v", err)
	}
}
