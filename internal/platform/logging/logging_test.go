package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, err := New(Config{Dir: dir, Network: "testnet", App: "nftgen", Stderr: &console})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.WithField("drop", "genesis").Info("generation started")
	if err := logger.Close(); err != nil {
		t.Fatalf("close logger: %v", err)
	}

	if !strings.Contains(console.String(), "generation started") {
		t.Fatalf("expected console output, got %q", console.String())
	}
	data, err := os.ReadFile(filepath.Join(dir, "testnet_nftgen.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "drop=genesis") {
		t.Fatalf("expected structured field in log file, got %q", string(data))
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected level error")
	}
}

func TestFileNameDefaults(t *testing.T) {
	if got := FileName("", ""); got != "unknown_nftgen.log" {
		t.Fatalf("FileName() = %q", got)
	}
	if got := FileName("mainnet", "merge"); got != "mainnet_merge.log" {
		t.Fatalf("FileName() = %q", got)
	}
}

func TestCloseWithoutFileSink(t *testing.T) {
	logger, err := New(Config{Stderr: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
