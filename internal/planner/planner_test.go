// internal/planner/planner_test.go
package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

// geminiResponse wraps text into the generateContent response envelope.
func geminiResponse(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func newTestPlanner(t *testing.T, handler http.HandlerFunc) *Planner {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.PlannerConfig{
		Provider:          "gemini",
		Model:             "test-model",
		APIKey:            "test-key",
		Endpoint:          server.URL,
		APITimeout:        5 * time.Second,
		RequestsPerMinute: 6000,
		MaxTokens:         1024,
	}
	p, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(config.PlannerConfig{Provider: "gemini"}, zap.NewNop())
	assert.ErrorContains(t, err, "API key")
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(config.PlannerConfig{Provider: "openrouter", APIKey: "k"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown planner provider")
}

func TestGeneratePlanParsesResponse(t *testing.T) {
	planText := `{"checkpoints": [{"name": "home", "actions": [{"type": "navigate", "url": "https://x.test"}]}], "confidence": 0.7}`
	p := newTestPlanner(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		w.Write([]byte(geminiResponse(planText)))
	})

	plan, err := p.GeneratePlan(context.Background(), "open the homepage", nil)
	require.NoError(t, err)
	assert.Len(t, plan.Checkpoints, 1)
	assert.Equal(t, "home", plan.Checkpoints[0].Name)
	assert.InDelta(t, 0.7, plan.Confidence, 1e-9)
}

func TestGeneratePlanFailsStrictlyOnMalformedPlan(t *testing.T) {
	p := newTestPlanner(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiResponse("I could not produce a plan, sorry.")))
	})

	_, err := p.GeneratePlan(context.Background(), "do something", nil)
	require.Error(t, err)
	// The raw response is preserved for diagnosis.
	assert.ErrorContains(t, err, "could not produce a plan")
}

func TestGeneratePlanRetriesTransientErrors(t *testing.T) {
	planText := `{"checkpoints": [{"name": "cp", "actions": [{"type": "wait_for_time", "duration_ms": 1}]}]}`
	var calls atomic.Int32
	p := newTestPlanner(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(geminiResponse(planText)))
	})

	plan, err := p.GeneratePlan(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Len(t, plan.Checkpoints, 1)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestGeneratePlanDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestPlanner(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := p.GeneratePlan(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProposeAlternativesReturnsRawBody(t *testing.T) {
	p := newTestPlanner(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiResponse(`Sure! Here you go: {"selectors": ["id=a", "css=.b"]} hope that helps`)))
	})

	raw, err := p.ProposeAlternatives(context.Background(), schemas.RecoveryRequest{
		Checkpoint: "cp",
		Action:     schemas.Action{Type: schemas.ActionClick, Refs: []string{"id=gone"}},
		Error:      "no candidate reference resolved",
	})
	require.NoError(t, err)

	// Prose is stripped, but the body is not validated: salvage is the
	// caller's job.
	var doc map[string][]string
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, []string{"id=a", "css=.b"}, doc["selectors"])
}

func TestProposeAlternativesPassesMalformedBodiesThrough(t *testing.T) {
	p := newTestPlanner(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiResponse(`{"selectors": ["id=a", truncated`)))
	})

	raw, err := p.ProposeAlternatives(context.Background(), schemas.RecoveryRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdefg", 3))
}
