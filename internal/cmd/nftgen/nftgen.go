// Package nftgen parses nftgen flags and runs its subcommands.
package nftgen

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	entrypoint "github.com/thecardroom/nftgen/internal/platform/cmd"
	"github.com/thecardroom/nftgen/internal/platform/logging"
	"github.com/thecardroom/nftgen/internal/random"
	"github.com/thecardroom/nftgen/internal/services/drop/catalog"
	"github.com/thecardroom/nftgen/internal/services/drop/compose"
	"github.com/thecardroom/nftgen/internal/services/drop/generate"
	"github.com/thecardroom/nftgen/internal/services/drop/metadata"
	"github.com/thecardroom/nftgen/internal/services/drop/storage/sqlite"
)

// Subcommands.
const (
	CommandGenerate = "generate"
	CommandValidate = "validate"
	CommandMerge    = "merge"
	CommandRuns     = "runs"
)

// Compositor backends.
const (
	CompositorImaging = "imaging"
	CompositorConvert = "convert"
)

var networks = []string{"mainnet", "testnet", "preprod", "preview"}

// Config holds nftgen command configuration.
type Config struct {
	Command string

	Network       string `env:"NFTGEN_NETWORK" envDefault:"testnet"`
	PolicyID      string `env:"NFTGEN_POLICY_ID"`
	OutputDir     string `env:"NFTGEN_OUTPUT_DIR" envDefault:"nft"`
	LedgerPath    string `env:"NFTGEN_LEDGER_PATH" envDefault:"data/nftgen.db"`
	LogDir        string `env:"NFTGEN_LOG_DIR" envDefault:"log"`
	LogLevel      string `env:"NFTGEN_LOG_LEVEL" envDefault:"info"`
	Seed          int64  `env:"NFTGEN_SEED"`
	Compositor    string `env:"NFTGEN_COMPOSITOR" envDefault:"imaging"`
	ConvertBinary string `env:"NFTGEN_CONVERT_BINARY" envDefault:"convert"`
	CacheBytes    int64  `env:"NFTGEN_IMAGE_CACHE_BYTES" envDefault:"536870912"`

	DropPath    string
	RetryBudget int
	MergeOut    string
	MergeFiles  []string
	Limit       int
}

// Usage describes the subcommands.
const Usage = `usage: nftgen <command> [flags]

commands:
  generate -drop <file>            generate a drop
  validate -drop <file>            load a drop and report its size
  merge -out <file> <files...>     merge metadata files into one document
  runs                             list recent runs from the ledger`

// ParseConfig parses environment and flags into Config. args starts with the
// subcommand.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return Config{}, errors.New(Usage)
	}
	cfg := Config{Command: args[0]}
	if !slices.Contains([]string{CommandGenerate, CommandValidate, CommandMerge, CommandRuns}, cfg.Command) {
		return Config{}, fmt.Errorf("unknown command %q\n%s", cfg.Command, Usage)
	}
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	var noLedger bool
	fs.StringVar(&cfg.Network, "network", cfg.Network, "network label for output paths (mainnet, testnet, preprod, preview)")
	fs.StringVar(&cfg.PolicyID, "policy-id", cfg.PolicyID, "minting policy id (hex)")
	fs.StringVar(&cfg.OutputDir, "out-dir", cfg.OutputDir, "root output directory")
	fs.StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "SQLite ledger path (empty disables)")
	fs.BoolVar(&noLedger, "no-ledger", false, "do not record the run")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "log directory (empty logs to stderr only)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for reproducibility (0 = random)")
	fs.StringVar(&cfg.Compositor, "compositor", cfg.Compositor, "image backend (imaging, convert)")
	fs.StringVar(&cfg.DropPath, "drop", "", "drop definition file")
	fs.IntVar(&cfg.RetryBudget, "retry-budget", 0, "consecutive duplicate samples allowed (0 = derived)")
	fs.StringVar(&cfg.MergeOut, "out", "", "merged metadata file (default beside the first input)")
	fs.IntVar(&cfg.Limit, "limit", 20, "number of runs to list")
	if err := entrypoint.ParseArgs(fs, args[1:]); err != nil {
		return Config{}, err
	}
	if noLedger {
		cfg.LedgerPath = ""
	}
	cfg.MergeFiles = fs.Args()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !slices.Contains(networks, c.Network) {
		return fmt.Errorf("unknown network %q", c.Network)
	}
	switch c.Command {
	case CommandGenerate, CommandValidate:
		if strings.TrimSpace(c.DropPath) == "" {
			return fmt.Errorf("%s: -drop is required", c.Command)
		}
		if c.Command == CommandGenerate {
			if err := metadata.ValidatePolicyID(c.PolicyID); err != nil {
				return fmt.Errorf("generate: -policy-id: %w", err)
			}
		}
	case CommandMerge:
		if err := metadata.ValidatePolicyID(c.PolicyID); err != nil {
			return fmt.Errorf("merge: -policy-id: %w", err)
		}
		if len(c.MergeFiles) == 0 {
			return fmt.Errorf("merge: at least one metadata file is required")
		}
	case CommandRuns:
		if strings.TrimSpace(c.LedgerPath) == "" {
			return fmt.Errorf("runs: a ledger path is required")
		}
		if c.Limit <= 0 {
			return fmt.Errorf("runs: -limit must be positive")
		}
	}
	if c.Compositor != CompositorImaging && c.Compositor != CompositorConvert {
		return fmt.Errorf("unknown compositor %q", c.Compositor)
	}
	if c.RetryBudget < 0 {
		return fmt.Errorf("-retry-budget must not be negative")
	}
	return nil
}

func service(command string) string {
	switch command {
	case CommandValidate:
		return entrypoint.ServiceValidate
	case CommandMerge:
		return entrypoint.ServiceMerge
	case CommandRuns:
		return entrypoint.ServiceRuns
	default:
		return entrypoint.ServiceGenerate
	}
}

// Run executes the configured subcommand.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	name := service(cfg.Command)
	logger, err := logging.New(logging.Config{
		Dir:     cfg.LogDir,
		Network: cfg.Network,
		App:     name,
		Level:   cfg.LogLevel,
		Stderr:  errOut,
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	opts := entrypoint.RunOptions{Logger: logger}
	return entrypoint.RunWithTelemetryAndOptions(ctx, name, opts, func(ctx context.Context) error {
		switch cfg.Command {
		case CommandGenerate:
			return runGenerate(ctx, cfg, logger.Logger, out)
		case CommandValidate:
			return runValidate(ctx, cfg, out)
		case CommandMerge:
			return runMerge(cfg, out, time.Now())
		case CommandRuns:
			return runRuns(ctx, cfg, out)
		default:
			return fmt.Errorf("unknown command %q", cfg.Command)
		}
	})
}

func runValidate(ctx context.Context, cfg Config, out io.Writer) error {
	cat, err := catalog.Load(ctx, cfg.DropPath)
	if err != nil {
		var verr *catalog.ValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Violations {
				fmt.Fprintf(out, "  %s\n", v)
			}
		}
		return err
	}
	fmt.Fprintf(out, "drop:  %s (%s)\n", cat.DropName, cat.Mode())
	if cat.Mode() == catalog.ModeCardEdition {
		fmt.Fprintf(out, "cards: %d\n", len(cat.Cards))
		fmt.Fprintf(out, "editions: %s\n", catalog.FormatCount(catalog.Count(cat)))
		return nil
	}
	for _, set := range cat.LayerSets {
		fmt.Fprintf(out, "layer set %s (weight %g): %s combinations\n", set.Name, set.Weight, catalog.FormatCount(catalog.Combinations(set)))
	}
	total := catalog.Count(cat)
	fmt.Fprintf(out, "combinations: %s\n", catalog.FormatCount(total))
	fmt.Fprintf(out, "requested: %s\n", catalog.FormatCount(int64(cat.Total)))
	if int64(cat.Total) > total {
		fmt.Fprintln(out, "warning: requested total exceeds distinct combinations")
	}
	return nil
}

func runGenerate(ctx context.Context, cfg Config, logger *logrus.Logger, out io.Writer) error {
	cat, err := catalog.Load(ctx, cfg.DropPath)
	if err != nil {
		return err
	}
	seed, err := random.ResolveSeed(cfg.Seed)
	if err != nil {
		return err
	}

	genCfg := generate.Config{
		Network:     cfg.Network,
		PolicyID:    cfg.PolicyID,
		OutputRoot:  cfg.OutputDir,
		Logger:      logger,
		RetryBudget: cfg.RetryBudget,
	}
	if cat.Mode() == catalog.ModeRandomDrop {
		c, closeFn, err := newCompositor(cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		genCfg.Compositor = c
	}
	if cfg.LedgerPath != "" {
		store, err := sqlite.Open(ctx, cfg.LedgerPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer store.Close()
		genCfg.Ledger = store
	}

	gen, err := generate.New(genCfg)
	if err != nil {
		return err
	}
	run, err := generate.NewRun(seed)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"run_id": run.ID, "seed": seed}).Info("run started")

	res, err := gen.Generate(ctx, cat, run)
	if res != nil {
		fmt.Fprintf(out, "run:      %s\n", res.RunID)
		fmt.Fprintf(out, "seed:     %d\n", res.Seed)
		fmt.Fprintf(out, "accepted: %s of %s\n", catalog.FormatCount(int64(len(res.Assets))), catalog.FormatCount(int64(res.Requested)))
		fmt.Fprintf(out, "rejected: %s\n", catalog.FormatCount(int64(res.Rejected)))
		fmt.Fprintf(out, "output:   %s\n", res.Layout.Dir())
	}
	return err
}

func newCompositor(cfg Config) (compose.Compositor, func(), error) {
	if cfg.Compositor == CompositorConvert {
		return compose.NewConvertCompositor(cfg.ConvertBinary), func() {}, nil
	}
	cache, err := compose.NewImageCache(cfg.CacheBytes)
	if err != nil {
		return nil, nil, err
	}
	return compose.NewImagingCompositor(cache), cache.Close, nil
}

func runMerge(cfg Config, out io.Writer, now time.Time) error {
	target := cfg.MergeOut
	if target == "" {
		target = metadata.MergedFileName(filepath.Dir(cfg.MergeFiles[0]), now)
	}
	doc, err := metadata.Merge(cfg.PolicyID, cfg.MergeFiles, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "merged %d tokens into %s\n", len(doc.TokenNames), target)
	return nil
}

func runRuns(ctx context.Context, cfg Config, out io.Writer) error {
	store, err := sqlite.Open(ctx, cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, cfg.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	fmt.Fprintf(out, "%-26s  %-16s  %-8s  %-12s  %-9s  %9s  %s\n", "RUN", "DROP", "NETWORK", "MODE", "STATUS", "ACCEPTED", "STARTED")
	for _, r := range runs {
		fmt.Fprintf(out, "%-26s  %-16s  %-8s  %-12s  %-9s  %4d/%-4d  %s\n",
			r.ID, r.Drop, r.Network, r.Mode, r.Status, r.Accepted, r.Requested, r.StartedAt.Local().Format(time.DateTime))
	}
	return nil
}
