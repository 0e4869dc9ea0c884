// Package logging configures the structured logger shared by the CLI.
//
// Every invocation logs to stderr and to a size-rotated file named after the
// network and command, so a drop generated on mainnet keeps its own history
// apart from testnet rehearsals.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction.
type Config struct {
	Dir     string
	Network string
	App     string
	Level   string
	// Stderr overrides the console sink; nil means os.Stderr.
	Stderr io.Writer
}

// Logger couples a logrus logger with the file sink it writes to.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New builds a logger. An empty Dir disables the rotating file sink.
func New(cfg Config) (*Logger, error) {
	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	console := cfg.Stderr
	if console == nil {
		console = os.Stderr
	}

	logger := logrus.New()
	logger.SetLevel(parsed)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	out := &Logger{Logger: logger}
	if dir := strings.TrimSpace(cfg.Dir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		out.file = &lumberjack.Logger{
			Filename:   filepath.Join(dir, FileName(cfg.Network, cfg.App)),
			MaxSize:    50,
			MaxBackups: 10,
			MaxAge:     90,
		}
		logger.SetOutput(io.MultiWriter(console, out.file))
	} else {
		logger.SetOutput(console)
	}
	return out, nil
}

// FileName returns the log file name for a network and command.
func FileName(network, app string) string {
	network = strings.TrimSpace(network)
	if network == "" {
		network = "unknown"
	}
	app = strings.TrimSpace(app)
	if app == "" {
		app = "nftgen"
	}
	return network + "_" + app + ".log"
}

// Close flushes and closes the file sink.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Discard returns a logger that drops every entry. Tests use it.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
