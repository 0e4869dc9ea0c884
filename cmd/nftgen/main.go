// Package main runs the nftgen generative drop CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	nftgencmd "github.com/thecardroom/nftgen/internal/cmd/nftgen"
	"github.com/thecardroom/nftgen/internal/platform/config"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		config.Exitf("nftgen: %v", err)
	}
	fs := flag.NewFlagSet("nftgen", flag.ExitOnError)
	cfg, err := nftgencmd.ParseConfig(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := nftgencmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		stop()
		config.Exitf("nftgen %s: %v", cfg.Command, err)
	}
}
