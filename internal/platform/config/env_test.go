package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type envTestConfig struct {
	Network string `env:"NFTGEN_TEST_NETWORK" envDefault:"testnet"`
	Seed    int64  `env:"NFTGEN_TEST_SEED" envDefault:"0"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Network != "testnet" {
		t.Fatalf("expected default network testnet, got %q", cfg.Network)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("NFTGEN_TEST_SEED", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing dotenv to be skipped: %v", err)
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "NFTGEN_TEST_NETWORK=mainnet\nNFTGEN_TEST_DOTENV_ONLY=present\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	t.Setenv("NFTGEN_TEST_NETWORK", "preview")
	t.Setenv("NFTGEN_TEST_DOTENV_ONLY", "")
	os.Unsetenv("NFTGEN_TEST_DOTENV_ONLY")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("NFTGEN_TEST_NETWORK"); got != "preview" {
		t.Fatalf("expected environment to win, got %q", got)
	}
	if got := os.Getenv("NFTGEN_TEST_DOTENV_ONLY"); got != "present" {
		t.Fatalf("expected dotenv value, got %q", got)
	}
}
