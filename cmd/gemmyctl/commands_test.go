package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemmy/internal/client"
	"gemmy/internal/models"
	"gemmy/internal/orders"
	"gemmy/internal/poller"
)

func TestDescribeUpdate(t *testing.T) {
	snap := client.Snapshot{Detail: orders.Detail{
		Found:          true,
		Tracking:       &models.Projection{Paid: true, Photos: []models.Photo{{}}},
		StatusLabel:    "Kit shipped",
		Progress:       0.25,
		NeedsAttention: true,
	}}

	line := describeUpdate(poller.Update[client.Snapshot]{Value: snap, Used: 3, Max: 10})
	assert.Equal(t, "[3/10] Kit shipped (25%) photos=1 messages=0 needs-attention paid", line)

	stale := describeUpdate(poller.Update[client.Snapshot]{Value: snap, Used: 4, Max: 10, Err: errors.New("timeout"), Stale: true})
	assert.Contains(t, stale, "(stale: timeout)")

	failed := describeUpdate(poller.Update[client.Snapshot]{Used: 1, Max: 10, Err: errors.New("boom")})
	assert.Equal(t, "[1/10] error: boom", failed)

	missing := describeUpdate(poller.Update[client.Snapshot]{Used: 1, Max: 10})
	assert.Equal(t, "[1/10] order not found", missing)
}

func TestExportTarget(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, filepath.Join(dir, "server.zip"), exportTarget(dir, "server.zip", now))
	assert.Equal(t, filepath.Join(dir, "gemmy-export-2026-07-04.zip"), exportTarget(dir, "", now))
	assert.Equal(t, filepath.Join(dir, "server.zip"), exportTarget(dir, "../../server.zip", now))

	file := filepath.Join(dir, "mine.zip")
	assert.Equal(t, file, exportTarget(file, "server.zip", now))
	assert.Equal(t, dir, exportDir(file))

	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Equal(t, file, exportTarget(file, "server.zip", now))
}
