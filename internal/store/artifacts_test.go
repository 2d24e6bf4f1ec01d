// internal/store/artifacts_test.go
package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewFileStore(zap.NewNop(), root, "run-123")
	require.NoError(t, err)
	return s, root
}

func TestNewFileStoreCreatesRunDirectory(t *testing.T) {
	s, root := newTestStore(t)
	assert.Equal(t, filepath.Join(root, "run-123"), s.RunDir())
	info, err := os.Stat(s.RunDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveScreenshotWritesUnderCheckpoint(t *testing.T) {
	s, _ := newTestStore(t)

	path, err := s.SaveScreenshot("login_done", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.RunDir(), "login_done", "screenshot.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestSaveCheckpointRecordMarksCaptured(t *testing.T) {
	s, _ := newTestStore(t)
	assert.False(t, s.Captured("login_done"))

	rec := &schemas.CheckpointRecord{
		Checkpoint:  "login_done",
		ActionIndex: 1,
		ActionType:  "click",
		RefUsed:     "id=submit",
		RefVerified: true,
		Timestamp:   time.Now().UTC(),
	}
	require.NoError(t, s.SaveCheckpointRecord(rec))
	assert.True(t, s.Captured("login_done"))

	raw, err := os.ReadFile(filepath.Join(s.RunDir(), "login_done", "metadata.json"))
	require.NoError(t, err)
	var got schemas.CheckpointRecord
	require.NoError(t, jsoniter.Unmarshal(raw, &got))
	assert.Equal(t, "login_done", got.Checkpoint)
	assert.Equal(t, "id=submit", got.RefUsed)
	assert.True(t, got.RefVerified)
	// ScreenshotPath serializes as an explicit null when absent.
	assert.Contains(t, string(raw), `"screenshot_path": null`)
}

func TestCapturedSeesRecordsFromPreviousStoreInstance(t *testing.T) {
	s, root := newTestStore(t)
	require.NoError(t, s.SaveCheckpointRecord(&schemas.CheckpointRecord{Checkpoint: "done"}))

	reopened, err := NewFileStore(zap.NewNop(), root, "run-123")
	require.NoError(t, err)
	assert.True(t, reopened.Captured("done"))
	assert.False(t, reopened.Captured("other"))
}

func TestSaveFailureAndResultLandAtRunRoot(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.SaveFailure(&schemas.FailureRecord{
		Checkpoint:  "broken",
		ActionIndex: 2,
		Error:       "no candidate reference resolved",
		Timestamp:   time.Now().UTC(),
	}))
	require.NoError(t, s.SaveResult(&schemas.RunResult{
		Status:              schemas.RunFailed,
		RunID:               "run-123",
		CheckpointsExecuted: 1,
		Timestamp:           time.Now().UTC(),
	}))

	_, err := os.Stat(filepath.Join(s.RunDir(), "failure.json"))
	assert.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(s.RunDir(), "result.json"))
	require.NoError(t, err)
	var res schemas.RunResult
	require.NoError(t, jsoniter.Unmarshal(raw, &res))
	assert.Equal(t, schemas.RunFailed, res.Status)
	assert.Equal(t, 1, res.CheckpointsExecuted)
}

func TestSanitizeKeepsNamesPathSafe(t *testing.T) {
	assert.Equal(t, "login_done", sanitize("login_done"))
	assert.Equal(t, "cart_2_items", sanitize("cart/2 items"))
	assert.Equal(t, "unnamed", sanitize("..."))
	assert.Equal(t, "a_b", sanitize("a:b"))
}

func TestCheckpointNamesWithSlashesCannotEscapeRunDir(t *testing.T) {
	s, _ := newTestStore(t)
	path, err := s.SaveScreenshot("../../etc/evil", []byte("x"))
	require.NoError(t, err)
	rel, err := filepath.Rel(s.RunDir(), path)
	require.NoError(t, err)
	assert.False(t, filepath.IsAbs(rel))
	assert.False(t, strings.HasPrefix(rel, ".."))
}
