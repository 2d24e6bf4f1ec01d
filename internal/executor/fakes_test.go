// internal/executor/fakes_test.go
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

// -- Mock Implementations for Testing --

// mockPage is a scriptable in-memory schemas.Page. Element state lives in the
// probes map; onClick/onSetValue hooks let tests mutate that state when a side
// effect lands, simulating dialogs opening and inputs appearing.
type mockPage struct {
	mu     sync.Mutex
	probes map[string]schemas.ElementProbe

	onClick    func(ref string) error
	onSetValue func(ref, value string) error
	navErr     error
	typeErr    error
	focusErr   error

	screenshot    []byte
	screenshotErr error
	location      string

	navigations []string
	clicks      []string
	sets        [][2]string
	focuses     []string
	typed       []string
	probeCount  map[string]int
}

func newMockPage() *mockPage {
	return &mockPage{
		probes:     make(map[string]schemas.ElementProbe),
		probeCount: make(map[string]int),
		screenshot: []byte("png-bytes"),
		location:   "https://example.test/page",
	}
}

func (m *mockPage) set(ref string, p schemas.ElementProbe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[ref] = p
}

func (m *mockPage) remove(ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.probes, ref)
}

func (m *mockPage) Navigate(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.navigations = append(m.navigations, url)
	if m.navErr != nil {
		return m.navErr
	}
	m.location = url
	return nil
}

func (m *mockPage) Probe(ctx context.Context, ref string) (schemas.ElementProbe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeCount[ref]++
	if p, ok := m.probes[ref]; ok {
		return p, nil
	}
	return schemas.ElementProbe{}, nil
}

func (m *mockPage) Click(ctx context.Context, ref string) error {
	m.mu.Lock()
	m.clicks = append(m.clicks, ref)
	hook := m.onClick
	m.mu.Unlock()
	if hook != nil {
		return hook(ref)
	}
	return nil
}

func (m *mockPage) SetValue(ctx context.Context, ref, value string) error {
	m.mu.Lock()
	m.sets = append(m.sets, [2]string{ref, value})
	hook := m.onSetValue
	m.mu.Unlock()
	if hook != nil {
		return hook(ref, value)
	}
	return nil
}

func (m *mockPage) Focus(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focuses = append(m.focuses, ref)
	return m.focusErr
}

func (m *mockPage) TypeText(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typed = append(m.typed, text)
	return m.typeErr
}

func (m *mockPage) Screenshot(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.screenshotErr != nil {
		return nil, m.screenshotErr
	}
	return m.screenshot, nil
}

func (m *mockPage) Location(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location, nil
}

func (m *mockPage) Title(ctx context.Context) (string, error) { return "Test Page", nil }
func (m *mockPage) HTML(ctx context.Context) (string, error)  { return "<html></html>", nil }

// Probe fixtures.

func buttonProbe() schemas.ElementProbe {
	return schemas.ElementProbe{Exists: true, Visible: true, Width: 80, Height: 24, Tag: "button"}
}

func inputProbe() schemas.ElementProbe {
	return schemas.ElementProbe{Exists: true, Visible: true, Width: 200, Height: 24, Tag: "input", InputType: "text"}
}

func divProbe() schemas.ElementProbe {
	return schemas.ElementProbe{Exists: true, Visible: true, Width: 400, Height: 300, Tag: "div"}
}

func hiddenProbe() schemas.ElementProbe {
	return schemas.ElementProbe{Exists: true, Visible: false, Tag: "div"}
}

// mockPlanner is a canned schemas.Planner.
type mockPlanner struct {
	mu       sync.Mutex
	plan     *schemas.Plan
	planErr  error
	alt      json.RawMessage
	altErr   error
	requests []schemas.RecoveryRequest
}

func (m *mockPlanner) GeneratePlan(ctx context.Context, instruction string, snap *schemas.PageSnapshot) (*schemas.Plan, error) {
	return m.plan, m.planErr
}

func (m *mockPlanner) ProposeAlternatives(ctx context.Context, req schemas.RecoveryRequest) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.alt, m.altErr
}

// mockSnapshotter returns a fixed snapshot.
type mockSnapshotter struct {
	snap *schemas.PageSnapshot
	err  error
}

func (m *mockSnapshotter) Capture(ctx context.Context, page schemas.Page) (*schemas.PageSnapshot, error) {
	return m.snap, m.err
}

// memStore is an in-memory schemas.ArtifactStore.
type memStore struct {
	mu            sync.Mutex
	screenshots   map[string][]byte
	records       []*schemas.CheckpointRecord
	failures      []*schemas.FailureRecord
	results       []*schemas.RunResult
	captured      map[string]bool
	screenshotErr error
	recordErr     error
}

func newMemStore() *memStore {
	return &memStore{
		screenshots: make(map[string][]byte),
		captured:    make(map[string]bool),
	}
}

func (s *memStore) SaveScreenshot(checkpoint string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screenshotErr != nil {
		return "", s.screenshotErr
	}
	s.screenshots[checkpoint] = data
	return "/artifacts/" + checkpoint + "/screenshot.png", nil
}

func (s *memStore) SaveCheckpointRecord(rec *schemas.CheckpointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.records = append(s.records, rec)
	s.captured[rec.Checkpoint] = true
	return nil
}

func (s *memStore) Captured(checkpoint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured[checkpoint]
}

func (s *memStore) SaveFailure(rec *schemas.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, rec)
	return nil
}

func (s *memStore) SaveResult(res *schemas.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return nil
}

func (s *memStore) recordFor(checkpoint string) *schemas.CheckpointRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Checkpoint == checkpoint {
			return rec
		}
	}
	return nil
}

// testConfig keeps every budget tiny so polling loops resolve in
// milliseconds.
func testConfig() config.ExecutorConfig {
	return config.ExecutorConfig{
		PollInterval:          2 * time.Millisecond,
		CandidateTimeout:      30 * time.Millisecond,
		ActionTimeout:         100 * time.Millisecond,
		ExpectTimeout:         30 * time.Millisecond,
		SettleDelay:           time.Millisecond,
		CaptureVerifyTimeout:  20 * time.Millisecond,
		MaxRecoveryCandidates: 12,
	}
}

type testHarness struct {
	page    *mockPage
	planner *mockPlanner
	snaps   *mockSnapshotter
	store   *memStore
	exec    *Executor
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	page := newMockPage()
	planner := &mockPlanner{altErr: errors.New("no alternatives configured")}
	snaps := &mockSnapshotter{snap: &schemas.PageSnapshot{URL: "https://example.test/page"}}
	store := newMemStore()
	exec := New(zap.NewNop(), testConfig(), page, planner, snaps, store, "test-run")
	return &testHarness{page: page, planner: planner, snaps: snaps, store: store, exec: exec}
}
