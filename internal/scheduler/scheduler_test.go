package scheduler

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/pkg/research"
)

type fakeRunner struct {
	mu        sync.Mutex
	collects  int
	snapshots int
	fail      bool
}

func (f *fakeRunner) Collect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collects++
	return nil
}

func (f *fakeRunner) GenerateSnapshot(_ context.Context, w io.Writer) (*research.SnapshotResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots++
	if f.fail {
		return nil, errors.New("boom")
	}
	_, err := io.WriteString(w, "niche\nchef knives\n")
	return &research.SnapshotResult{RunID: "run", Rows: 1}, err
}

func (f *fakeRunner) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collects, f.snapshots
}

func TestRunCollectsAndExportsUntilCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "snapshot.csv")
	runner := &fakeRunner{}
	s := New(runner, path, time.Hour, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, snaps := runner.counts()
		return snaps == 1
	}, time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	collects, _ := runner.counts()
	assert.Equal(t, 1, collects)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "niche\nchef knives\n", string(data))
}

func TestFailedSnapshotKeepsPreviousExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.csv")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	s := New(&fakeRunner{fail: true}, path, time.Hour, time.Hour, zap.NewNop())
	assert.Error(t, s.writeSnapshot(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}
