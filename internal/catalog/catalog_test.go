package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRunLifecycle(t *testing.T) {
	c := openTest(t)

	started := time.Now()
	run := RunRecord{
		ID:             "run-1",
		Input:          "/data/site7/tiles",
		OutputDir:      "/data/site7/out",
		Resolution:     0.5,
		Method:         "smrf",
		TerrainProfile: "dense_forest",
		Advanced:       true,
		TileCount:      12,
		StartedAt:      started,
	}
	require.NoError(t, c.StartRun(run))

	got, err := c.Run("run-1")
	require.NoError(t, err)
	assert.Equal(t, "running", got.Status)
	assert.Equal(t, 0.5, got.Resolution)
	assert.Equal(t, "smrf", got.Method)
	assert.True(t, got.Advanced)
	assert.Equal(t, 12, got.TileCount)
	assert.Equal(t, started.UnixNano(), got.StartedAt.UnixNano())
	assert.Nil(t, got.FinishedAt)
	assert.Empty(t, got.Error)

	require.NoError(t, c.FinishRun("run-1", "complete", ""))
	got, err = c.Run("run-1")
	require.NoError(t, err)
	assert.Equal(t, "complete", got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
}

func TestFailedRunKeepsError(t *testing.T) {
	c := openTest(t)

	require.NoError(t, c.StartRun(RunRecord{ID: "run-2", StartedAt: time.Now()}))
	require.NoError(t, c.FinishRun("run-2", "failed", "ground extraction: exit code 1"))

	got, err := c.Run("run-2")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "ground extraction: exit code 1", got.Error)
}

func TestProductsInsertionOrder(t *testing.T) {
	c := openTest(t)
	require.NoError(t, c.StartRun(RunRecord{ID: "run-3", StartedAt: time.Now()}))

	products := []ProductRecord{
		{RunID: "run-3", Name: "ground", Path: "/out/DTM_bareearth.tif", Kind: "raster", SizeBytes: 1 << 20},
		{RunID: "run-3", Name: "hillshade", Path: "/out/hillshade_multi.tif", Kind: "raster", SizeBytes: 1 << 18},
		{RunID: "run-3", Name: "report", Path: "/out/report.html", Kind: "report", SizeBytes: 4096},
	}
	for _, p := range products {
		require.NoError(t, c.AddProduct(p))
	}

	got, err := c.Products("run-3")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "ground", got[0].Name)
	assert.Equal(t, "hillshade", got[1].Name)
	assert.Equal(t, "report", got[2].Name)
	assert.Equal(t, int64(1<<20), got[0].SizeBytes)

	other, err := c.Products("run-nope")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDuplicateRunID(t *testing.T) {
	c := openTest(t)
	require.NoError(t, c.StartRun(RunRecord{ID: "run-4", StartedAt: time.Now()}))
	assert.Error(t, c.StartRun(RunRecord{ID: "run-4", StartedAt: time.Now()}))
}

func TestReopenKeepsHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.db")

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.StartRun(RunRecord{ID: "run-5", StartedAt: time.Now()}))
	require.NoError(t, c.Close())

	// Reopening runs migrations again as a no-op and keeps existing rows.
	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Run("run-5")
	require.NoError(t, err)
	assert.Equal(t, "run-5", got.ID)
}

func TestRecentRunsNewestFirst(t *testing.T) {
	c := openTest(t)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, c.StartRun(RunRecord{ID: "old", StartedAt: base}))
	require.NoError(t, c.StartRun(RunRecord{ID: "new", StartedAt: base.Add(time.Minute)}))

	runs, err := c.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[1].ID)

	runs, err = c.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}

func TestUnknownRun(t *testing.T) {
	c := openTest(t)
	_, err := c.Run("missing")
	assert.Error(t, err)
}
