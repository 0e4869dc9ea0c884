// Package generate turns a loaded catalog into a numbered collection of
// assets: composited images (random drops) and per-token metadata files.
//
// Generation is single threaded. Each step samples, renders, checks
// uniqueness and writes metadata before the next one starts. Output written
// before a failure stays on disk for inspection and the ledger marks the run
// failed; there is no resume.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	apperrors "github.com/thecardroom/nftgen/internal/platform/errors"
	"github.com/thecardroom/nftgen/internal/platform/logging"
	"github.com/thecardroom/nftgen/internal/services/drop/catalog"
	"github.com/thecardroom/nftgen/internal/services/drop/compose"
	"github.com/thecardroom/nftgen/internal/services/drop/metadata"
	"github.com/thecardroom/nftgen/internal/services/drop/storage"
	"github.com/thecardroom/nftgen/internal/services/drop/traits"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/thecardroom/nftgen/internal/services/drop/generate")

// DefaultOutputRoot is the directory drops are written under.
const DefaultOutputRoot = "nft"

// Trait keys the generators stamp when a catalog declares them.
const (
	idKey   = "id"
	codeKey = "code"
)

// Config configures a Generator.
type Config struct {
	Network    string
	PolicyID   string
	OutputRoot string
	// Compositor renders random-drop images. Card drops do not use it.
	Compositor compose.Compositor
	// Ledger, when set, records the run and every accepted asset.
	Ledger storage.Ledger
	Logger logrus.FieldLogger
	// RetryBudget overrides the consecutive-rejection ceiling of a random
	// drop. Zero derives it with RetryBudget.
	RetryBudget int
	Now         func() time.Time
}

// Generator runs drops.
type Generator struct {
	cfg Config
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Generator, error) {
	cfg.Network = strings.TrimSpace(cfg.Network)
	if cfg.Network == "" {
		return nil, fmt.Errorf("network is required")
	}
	if err := metadata.ValidatePolicyID(cfg.PolicyID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.OutputRoot) == "" {
		cfg.OutputRoot = DefaultOutputRoot
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RetryBudget < 0 {
		return nil, fmt.Errorf("retry budget must not be negative")
	}
	return &Generator{cfg: cfg}, nil
}

// GeneratedAsset is one emitted token. It is immutable once returned.
type GeneratedAsset struct {
	Sequence       int
	TokenName      string
	NFTName        string
	CardID         string
	Edition        int
	CombinationKey string
	Properties     traits.Properties
	ImagePath      string
	ImageSHA256    string
	MetadataPath   string
	Fingerprint    string
}

// Result summarizes a finished run.
type Result struct {
	RunID        string
	Seed         int64
	Mode         catalog.Mode
	Layout       Layout
	Requested    int
	Combinations int64
	Rejected     int
	Assets       []GeneratedAsset
}

// MetadataPaths lists the metadata files in emission order.
func (r *Result) MetadataPaths() []string {
	out := make([]string, len(r.Assets))
	for i, a := range r.Assets {
		out[i] = a.MetadataPath
	}
	return out
}

// Layout returns where cat's output is written.
func (g *Generator) Layout(cat *catalog.Catalog) Layout {
	return Layout{Root: g.cfg.OutputRoot, Network: g.cfg.Network, Drop: cat.DropName}
}

// Generate runs the strategy the catalog declares.
func (g *Generator) Generate(ctx context.Context, cat *catalog.Catalog, run *Run) (*Result, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cat.Mode() == catalog.ModeCardEdition {
		return g.CardEditions(ctx, cat, run)
	}
	return g.RandomDrop(ctx, cat, run)
}

// session carries the per-call plumbing shared by both strategies.
type session struct {
	g      *Generator
	cat    *catalog.Catalog
	run    *Run
	layout Layout
	log    logrus.FieldLogger
	span   trace.Span
	result *Result
}

func (g *Generator) begin(ctx context.Context, spanName string, cat *catalog.Catalog, run *Run, requested int) (context.Context, *session, error) {
	if run == nil || run.Source == nil || run.Guard == nil {
		return ctx, nil, fmt.Errorf("run is not initialized")
	}
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("drop.name", cat.DropName),
		attribute.String("drop.network", g.cfg.Network),
		attribute.Int64("drop.seed", run.Seed),
		attribute.Int("drop.requested", requested),
	))
	s := &session{
		g:      g,
		cat:    cat,
		run:    run,
		layout: g.Layout(cat),
		span:   span,
		log: g.cfg.Logger.WithFields(logrus.Fields{
			"run_id":  run.ID,
			"drop":    cat.DropName,
			"network": g.cfg.Network,
		}),
		result: &Result{
			RunID:        run.ID,
			Seed:         run.Seed,
			Mode:         cat.Mode(),
			Layout:       g.Layout(cat),
			Requested:    requested,
			Combinations: catalog.Count(cat),
		},
	}
	if g.cfg.Ledger != nil {
		err := g.cfg.Ledger.CreateRun(context.WithoutCancel(ctx), storage.Run{
			ID:        run.ID,
			Drop:      cat.DropName,
			Network:   g.cfg.Network,
			PolicyID:  g.cfg.PolicyID,
			Mode:      string(cat.Mode()),
			Seed:      run.Seed,
			Requested: requested,
			Status:    storage.RunRunning,
			StartedAt: g.cfg.Now(),
		})
		if err != nil {
			span.End()
			return ctx, nil, fmt.Errorf("record run start: %w", err)
		}
	}
	return ctx, s, nil
}

// finish closes the span and the ledger run. Ledger bookkeeping ignores
// cancellation so an interrupted run is still marked failed.
func (s *session) finish(ctx context.Context, runErr error) (*Result, error) {
	defer s.span.End()
	s.result.Rejected = s.run.rejected
	s.span.SetAttributes(
		attribute.Int("drop.accepted", s.run.accepted),
		attribute.Int("drop.rejected", s.run.rejected),
	)

	status, message := storage.RunCompleted, ""
	if runErr != nil {
		status, message = storage.RunFailed, runErr.Error()
		s.span.RecordError(runErr)
		s.span.SetStatus(codes.Error, message)
	}
	if s.g.cfg.Ledger != nil {
		err := s.g.cfg.Ledger.FinishRun(context.WithoutCancel(ctx), s.run.ID, status, s.run.accepted, message, s.g.cfg.Now())
		if err != nil {
			s.log.WithError(err).Warn("failed to record run outcome")
			if runErr == nil {
				runErr = fmt.Errorf("record run outcome: %w", err)
			}
		}
	}
	if runErr != nil {
		s.log.WithError(runErr).WithFields(logrus.Fields{
			"accepted":  s.run.accepted,
			"requested": s.result.Requested,
		}).Error("drop failed")
		return s.result, runErr
	}
	s.log.WithFields(logrus.Fields{
		"accepted": s.run.accepted,
		"rejected": s.run.rejected,
		"images":   s.run.Guard.Len(),
	}).Info("drop complete")
	return s.result, nil
}

// emit writes an asset's metadata, records it and appends it to the result.
// A token name already used in this run fails before anything is written.
func (s *session) emit(ctx context.Context, asset GeneratedAsset, description string) error {
	if !s.run.Guard.ClaimToken(asset.TokenName) {
		return apperrors.WithMetadata(apperrors.CodeTemplateInvalid,
			fmt.Sprintf("token name %s repeats within the run", asset.TokenName),
			map[string]string{"token": asset.TokenName, "template": "token-name"})
	}
	fp, err := metadata.Fingerprint(s.g.cfg.PolicyID, asset.TokenName)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeMetadataWriteFailed, "fingerprint "+asset.TokenName, err)
	}
	asset.Fingerprint = fp

	path, err := metadata.Write(s.layout.MetadataDir(), s.g.cfg.PolicyID, metadata.Asset{
		TokenName:   asset.TokenName,
		Name:        asset.NFTName,
		Image:       asset.ImagePath,
		Description: description,
		Properties:  asset.Properties,
	})
	if err != nil {
		return err
	}
	asset.MetadataPath = path

	if s.g.cfg.Ledger != nil {
		err := s.g.cfg.Ledger.RecordAsset(ctx, storage.Asset{
			RunID:          s.run.ID,
			Sequence:       asset.Sequence,
			TokenName:      asset.TokenName,
			NFTName:        asset.NFTName,
			Fingerprint:    asset.Fingerprint,
			CombinationKey: asset.CombinationKey,
			ImagePath:      asset.ImagePath,
			ImageSHA256:    asset.ImageSHA256,
			MetadataPath:   asset.MetadataPath,
			CreatedAt:      s.g.cfg.Now(),
		})
		if err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return apperrors.WithMetadata(apperrors.CodeMetadataWriteFailed,
					fmt.Sprintf("token %s already recorded for run", asset.TokenName),
					map[string]string{"token": asset.TokenName})
			}
			return fmt.Errorf("record asset %s: %w", asset.TokenName, err)
		}
	}

	s.run.accepted++
	s.result.Assets = append(s.result.Assets, asset)
	s.log.WithFields(logrus.Fields{
		"seq":   asset.Sequence,
		"token": asset.TokenName,
		"key":   asset.CombinationKey,
	}).Info("created")
	return nil
}

func (s *session) names(fields catalog.NameFields) (token, nft string, err error) {
	token, err = s.cat.TokenName.Render(fields)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.CodeTemplateInvalid, "token name", err)
	}
	nft, err = s.cat.NFTName.Render(fields)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.CodeTemplateInvalid, "nft name", err)
	}
	return token, nft, nil
}
