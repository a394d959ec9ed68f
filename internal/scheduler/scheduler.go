// Package scheduler runs periodic data collection and candidate snapshots.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/pkg/research"
)

// Runner is the work performed on each tick.
type Runner interface {
	Collect(ctx context.Context) error
	GenerateSnapshot(ctx context.Context, w io.Writer) (*research.SnapshotResult, error)
}

// Scheduler runs periodic collection and snapshot export.
type Scheduler struct {
	runner      Runner
	exportPath  string
	collectInt  time.Duration
	snapshotInt time.Duration
	log         *zap.Logger
}

// New creates a new scheduler.
func New(runner Runner, exportPath string, collectInt, snapshotInt time.Duration, log *zap.Logger) *Scheduler {
	if collectInt == 0 {
		collectInt = 6 * time.Hour
	}
	if snapshotInt == 0 {
		snapshotInt = 24 * time.Hour
	}
	return &Scheduler{
		runner:      runner,
		exportPath:  exportPath,
		collectInt:  collectInt,
		snapshotInt: snapshotInt,
		log:         log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	collectTicker := time.NewTicker(s.collectInt)
	snapshotTicker := time.NewTicker(s.snapshotInt)
	defer collectTicker.Stop()
	defer snapshotTicker.Stop()

	s.log.Info("initial collection")
	s.collect(ctx)
	s.log.Info("initial snapshot")
	s.snapshot(ctx)

	s.log.Info("scheduler running",
		zap.Duration("collect_every", s.collectInt),
		zap.Duration("snapshot_every", s.snapshotInt))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-collectTicker.C:
			s.collect(ctx)
		case <-snapshotTicker.C:
			s.snapshot(ctx)
		}
	}
}

func (s *Scheduler) collect(ctx context.Context) {
	start := time.Now()
	if err := s.runner.Collect(ctx); err != nil {
		s.log.Error("collection finished with errors", zap.Error(err))
		return
	}
	s.log.Info("collection finished", zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) snapshot(ctx context.Context) {
	if err := s.writeSnapshot(ctx); err != nil {
		s.log.Error("snapshot failed", zap.Error(err))
	}
}

// writeSnapshot renders the snapshot in memory and replaces the export file
// only when the run succeeds.
func (s *Scheduler) writeSnapshot(ctx context.Context) error {
	var buf bytes.Buffer
	res, err := s.runner.GenerateSnapshot(ctx, &buf)
	if err != nil {
		return err
	}

	tmp := s.exportPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.exportPath), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.exportPath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.log.Info("snapshot exported",
		zap.String("run_id", res.RunID),
		zap.String("path", s.exportPath),
		zap.Int("rows", res.Rows))
	return nil
}
