package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	store, err := NewStorage(context.Background(), nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(DefaultPath)
	assert.NoError(t, err, "database created at the default path")
}

func TestResolvePathExplicit(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	got, err := ResolvePath("data/qa.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "qa.db"), got)

	abs := filepath.Join(dir, "x.db")
	got, err = ResolvePath(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)
}

func TestResolvePathWalksUp(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	dbPath := filepath.Join(root, DefaultPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(dbPath), 0o755))
	require.NoError(t, os.WriteFile(dbPath, nil, 0o644))

	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	assert.Equal(t, dbPath, resolveFromDir(sub))
	assert.Equal(t, dbPath, resolveFromDir(root))
}

func TestResolvePathFallsBackToStartDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, DefaultPath), resolveFromDir(dir))
}

func TestRunLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "qa_agent.db")

	lockPath, err := AcquireRunLock(dbPath, "qa-agent run")
	require.NoError(t, err)
	assert.Equal(t, LockPath(dbPath), lockPath)

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	var lock RunLock
	require.NoError(t, json.Unmarshal(data, &lock))
	assert.Equal(t, os.Getpid(), lock.PID)
	assert.Equal(t, "qa-agent run", lock.Holder)

	// Our own process is alive, so a second acquire fails
	_, err = AcquireRunLock(dbPath, "qa-agent serve")
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, ReleaseRunLock(lockPath))
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))

	// Releasing twice is fine
	assert.NoError(t, ReleaseRunLock(lockPath))
	assert.NoError(t, ReleaseRunLock(""))
}

func TestRunLockReplacesStaleLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "qa_agent.db")
	hostname, err := os.Hostname()
	require.NoError(t, err)

	// PIDs this large are not in use
	stale, err := json.Marshal(RunLock{Holder: "old", PID: 1 << 30, Hostname: hostname, StartedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(LockPath(dbPath), stale, 0o644))

	lockPath, err := AcquireRunLock(dbPath, "new")
	require.NoError(t, err)
	defer ReleaseRunLock(lockPath)
}
