// Package storage defines persistence contracts for the drop ledger: one row
// per generation run and one per accepted asset.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested ledger record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// RunStatus is the lifecycle state of a generation run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run stores one generation run.
type Run struct {
	ID         string
	Drop       string
	Network    string
	PolicyID   string
	Mode       string
	Seed       int64
	Requested  int
	Accepted   int
	Status     RunStatus
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Asset stores one accepted asset of a run.
type Asset struct {
	RunID          string
	Sequence       int
	TokenName      string
	NFTName        string
	Fingerprint    string
	CombinationKey string
	ImagePath      string
	ImageSHA256    string
	MetadataPath   string
	CreatedAt      time.Time
}

// RunStore persists runs.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, runID string, status RunStatus, accepted int, runErr string, finishedAt time.Time) error
	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// AssetStore persists accepted assets.
type AssetStore interface {
	RecordAsset(ctx context.Context, asset Asset) error
	ListAssets(ctx context.Context, runID string) ([]Asset, error)
}

// Ledger is the full drop ledger.
type Ledger interface {
	RunStore
	AssetStore
}
