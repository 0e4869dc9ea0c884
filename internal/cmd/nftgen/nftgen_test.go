package nftgen

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/thecardroom/nftgen/internal/services/drop/metadata"
)

const testPolicy = "7eae28af2208be856f7a119668ae52a49b73725e326dc16579dcc373"

func parse(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("nftgen", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	return ParseConfig(fs, args)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parse(t, "validate", "-drop", "drop.json")
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Command != CommandValidate || cfg.DropPath != "drop.json" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Network != "testnet" || cfg.OutputDir != "nft" || cfg.Compositor != CompositorImaging {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.LedgerPath != "data/nftgen.db" || cfg.Limit != 20 {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("NFTGEN_NETWORK", "mainnet")
	t.Setenv("NFTGEN_SEED", "77")
	cfg, err := parse(t, "generate", "-drop", "d.json", "-policy-id", testPolicy, "-seed", "5", "-no-ledger")
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Network != "mainnet" {
		t.Fatalf("network = %q, want env value", cfg.Network)
	}
	if cfg.Seed != 5 {
		t.Fatalf("seed = %d, flag should override env", cfg.Seed)
	}
	if cfg.LedgerPath != "" {
		t.Fatalf("ledger = %q, want disabled", cfg.LedgerPath)
	}
}

func TestParseConfigMergeFiles(t *testing.T) {
	cfg, err := parse(t, "merge", "-policy-id", testPolicy, "-out", "m.json", "a.json", "b.json")
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.MergeOut != "m.json" || len(cfg.MergeFiles) != 2 || cfg.MergeFiles[1] != "b.json" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "flag first", args: []string{"-drop", "x"}},
		{name: "unknown command", args: []string{"mint"}},
		{name: "missing drop", args: []string{"generate"}},
		{name: "bad network", args: []string{"validate", "-drop", "x", "-network", "moon"}},
		{name: "bad compositor", args: []string{"generate", "-drop", "x", "-compositor", "gpu"}},
		{name: "merge without policy", args: []string{"merge", "a.json"}},
		{name: "generate without policy", args: []string{"generate", "-drop", "x"}},
		{name: "generate with bad policy", args: []string{"generate", "-drop", "x", "-policy-id", "not-hex"}},
		{name: "merge with short policy", args: []string{"merge", "-policy-id", "ab", "a.json"}},
		{name: "merge without files", args: []string{"merge", "-policy-id", testPolicy}},
		{name: "runs without ledger", args: []string{"runs", "-no-ledger"}},
		{name: "negative budget", args: []string{"generate", "-drop", "x", "-retry-budget", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse(t, tt.args...); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
}

func writeJSON(t *testing.T, path string, value any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func dropFixture(t *testing.T, total int) string {
	t.Helper()
	dir := t.TempDir()
	for name, c := range map[string]color.NRGBA{
		"red.png":  {R: 255, A: 255},
		"blue.png": {B: 255, A: 255},
	} {
		if err := imaging.Save(imaging.New(4, 4, c), filepath.Join(dir, name)); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	writeJSON(t, filepath.Join(dir, "body.json"), map[string]any{
		"width": 4, "height": 4,
		"images": []map[string]any{
			{"image": "red.png", "weight": 50, "properties": map[string]any{"body": "red", "id": 0}},
			{"image": "blue.png", "weight": 50, "properties": map[string]any{"body": "blue", "id": 0}},
		},
	})
	writeJSON(t, filepath.Join(dir, "set.json"), map[string]any{"name": "base", "layers": []string{"body.json"}})
	writeJSON(t, filepath.Join(dir, "drop.json"), map[string]any{
		"series":      1,
		"drop-name":   "genesis",
		"init-nft-id": 1,
		"token-name":  "TCR{{.Series}}{{pad 3 .Number}}",
		"nft-name":    "Genesis #{{.Number}}",
		"total":       total,
		"layer-sets":  []map[string]any{{"file": "set.json", "weight": 100}},
	})
	return filepath.Join(dir, "drop.json")
}

func baseConfig(t *testing.T, command string) Config {
	t.Helper()
	work := t.TempDir()
	return Config{
		Command:    command,
		Network:    "testnet",
		PolicyID:   testPolicy,
		OutputDir:  filepath.Join(work, "nft"),
		LedgerPath: filepath.Join(work, "data", "nftgen.db"),
		LogDir:     filepath.Join(work, "log"),
		LogLevel:   "info",
		Compositor: CompositorImaging,
		Limit:      10,
	}
}

func TestRunValidate(t *testing.T) {
	cfg := baseConfig(t, CommandValidate)
	cfg.DropPath = dropFixture(t, 3)
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"genesis", "combinations: 2", "requested: 3", "warning"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunValidateReportsViolations(t *testing.T) {
	cfg := baseConfig(t, CommandValidate)
	cfg.DropPath = filepath.Join(t.TempDir(), "missing.json")
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out, nil); err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(out.String(), "not found") {
		t.Fatalf("violations not printed:\n%s", out.String())
	}
}

func TestRunGenerateThenListRuns(t *testing.T) {
	cfg := baseConfig(t, CommandGenerate)
	cfg.DropPath = dropFixture(t, 2)
	cfg.Seed = 42
	var out, logs bytes.Buffer
	if err := Run(context.Background(), cfg, &out, &logs); err != nil {
		t.Fatalf("Run generate: %v\n%s", err, logs.String())
	}
	if !strings.Contains(out.String(), "accepted: 2 of 2") || !strings.Contains(out.String(), "seed:     42") {
		t.Fatalf("generate output:\n%s", out.String())
	}

	metaDir := filepath.Join(cfg.OutputDir, "testnet", "genesis", "nft_metadata")
	for _, token := range []string{"TCR1001", "TCR1002"} {
		doc, err := metadata.Parse(filepath.Join(metaDir, token+".json"))
		if err != nil {
			t.Fatalf("Parse %s: %v", token, err)
		}
		if doc.PolicyID != testPolicy {
			t.Fatalf("policy = %s", doc.PolicyID)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.LogDir, "testnet_nftgen.log")); err != nil {
		t.Fatalf("log file: %v", err)
	}

	runsCfg := cfg
	runsCfg.Command = CommandRuns
	out.Reset()
	if err := Run(context.Background(), runsCfg, &out, nil); err != nil {
		t.Fatalf("Run runs: %v", err)
	}
	if !strings.Contains(out.String(), "genesis") || !strings.Contains(out.String(), "completed") {
		t.Fatalf("runs output:\n%s", out.String())
	}

	mergeCfg := cfg
	mergeCfg.Command = CommandMerge
	mergeCfg.MergeFiles = []string{filepath.Join(metaDir, "TCR1001.json"), filepath.Join(metaDir, "TCR1002.json")}
	mergeCfg.MergeOut = filepath.Join(t.TempDir(), "merged.json")
	out.Reset()
	if err := Run(context.Background(), mergeCfg, &out, nil); err != nil {
		t.Fatalf("Run merge: %v", err)
	}
	merged, err := metadata.Parse(mergeCfg.MergeOut)
	if err != nil {
		t.Fatalf("Parse merged: %v", err)
	}
	if len(merged.TokenNames) != 2 {
		t.Fatalf("merged tokens = %v", merged.TokenNames)
	}
}

func TestRunsWithEmptyLedger(t *testing.T) {
	cfg := baseConfig(t, CommandRuns)
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "no runs recorded") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestService(t *testing.T) {
	if service(CommandGenerate) != "nftgen" || service(CommandMerge) != "nftgen-merge" {
		t.Fatal("unexpected service names")
	}
}
