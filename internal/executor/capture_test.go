// internal/executor/capture_test.go
package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

func TestExplicitCaptureWritesScreenshotAndMetadata(t *testing.T) {
	h := newHarness(t)
	h.page.set("id=receipt", divProbe())

	act := schemas.Action{Type: schemas.ActionCapture, CaptureName: "order_confirmed", Refs: []string{"id=receipt"}}
	out, err := h.exec.perform(context.Background(), &schemas.Plan{Confidence: 0.8},
		schemas.Checkpoint{Name: "checkout"}, 2, act)
	require.NoError(t, err)
	assert.Equal(t, "id=receipt", out.RefUsed)

	rec := h.store.recordFor("checkout")
	require.NotNil(t, rec)
	assert.Equal(t, "order_confirmed", rec.CaptureName)
	assert.Equal(t, "screenshot", rec.ActionType)
	assert.Equal(t, 2, rec.ActionIndex)
	assert.True(t, rec.RefVerified)
	assert.Equal(t, "id=receipt", rec.RefUsed)
	assert.InDelta(t, 0.8, rec.Confidence, 1e-9)
	assert.Equal(t, "https://example.test/page", rec.URL)
	require.NotNil(t, rec.ScreenshotPath)
	assert.Equal(t, []byte("png-bytes"), h.store.screenshots["checkout"])
	assert.True(t, h.store.Captured("checkout"))
}

func TestCaptureVerificationIsBestEffort(t *testing.T) {
	h := newHarness(t)
	// No verification target resolves; the capture still happens.

	act := schemas.Action{Type: schemas.ActionCapture, CaptureName: "final", Refs: []string{"id=gone"}}
	out, err := h.exec.perform(context.Background(), &schemas.Plan{}, schemas.Checkpoint{Name: "end"}, 0, act)
	require.NoError(t, err)
	assert.Empty(t, out.RefUsed)

	rec := h.store.recordFor("end")
	require.NotNil(t, rec)
	assert.False(t, rec.RefVerified)
	assert.Equal(t, "id=gone", rec.RefUsed)
	require.NotNil(t, rec.ScreenshotPath)
}

func TestCaptureSurvivesScreenshotFailure(t *testing.T) {
	h := newHarness(t)
	h.page.screenshotErr = errors.New("target crashed")

	act := schemas.Action{Type: schemas.ActionCapture, CaptureName: "final"}
	_, err := h.exec.perform(context.Background(), &schemas.Plan{}, schemas.Checkpoint{Name: "end"}, 0, act)
	require.NoError(t, err)

	rec := h.store.recordFor("end")
	require.NotNil(t, rec)
	assert.Nil(t, rec.ScreenshotPath)
}

func TestCaptureFailsOnlyWhenMetadataWriteFails(t *testing.T) {
	h := newHarness(t)
	h.store.recordErr = errors.New("disk full")

	act := schemas.Action{Type: schemas.ActionCapture, CaptureName: "final"}
	_, err := h.exec.perform(context.Background(), &schemas.Plan{}, schemas.Checkpoint{Name: "end"}, 0, act)
	assert.Error(t, err)
}

func TestImplicitCaptureAttributesLastAction(t *testing.T) {
	h := newHarness(t)
	cp := schemas.Checkpoint{
		Name: "login",
		Actions: []schemas.Action{
			{Type: schemas.ActionNavigate, URL: "https://example.test"},
			{Type: schemas.ActionClick, Refs: []string{"id=go"}},
		},
	}
	require.NoError(t, h.exec.captureImplicit(context.Background(), cp, 0.5))

	rec := h.store.recordFor("login")
	require.NotNil(t, rec)
	assert.Empty(t, rec.CaptureName)
	assert.Equal(t, "click", rec.ActionType)
	assert.Equal(t, 1, rec.ActionIndex)
}

func TestCaptureVerifyPrefersLastUsedReference(t *testing.T) {
	h := newHarness(t)
	h.page.set("id=used", divProbe())
	h.page.set("id=listed", divProbe())
	h.exec.mem.remember("id=used")

	act := schemas.Action{Type: schemas.ActionCapture, CaptureName: "final", Refs: []string{"id=listed"}}
	out, err := h.exec.perform(context.Background(), &schemas.Plan{}, schemas.Checkpoint{Name: "end"}, 0, act)
	require.NoError(t, err)
	assert.Equal(t, "id=used", out.RefUsed)
}

func TestDedupNonEmpty(t *testing.T) {
	got := dedupNonEmpty([]string{"", "a", "b", "a", "", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Empty(t, dedupNonEmpty(nil))
}
