// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

// Manager owns the headless browser process. All page sessions are tabs
// derived from its allocator context, and a weighted semaphore caps how many
// are open at once.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	sessions *semaphore.Weighted
}

// NewManager launches the browser process and verifies it responds before
// returning.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Manager, error) {
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: semaphore.NewWeighted(int64(cfg.MaxSessions)),
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Open a throwaway tab to confirm the process is alive and responsive.
	testCtx, cancelTimeout := context.WithTimeout(allocCtx, 30*time.Second)
	testCtx, cancelTest := chromedp.NewContext(testCtx)
	defer cancelTest()
	defer cancelTimeout()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched and responsive",
		zap.Bool("headless", cfg.Headless),
		zap.Int("max_sessions", cfg.MaxSessions))
	return m, nil
}

func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(m.cfg.ViewportWidth, m.cfg.ViewportHeight),
	)
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}
	if m.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

// NewSession opens a fresh tab. It blocks while the session cap is reached.
// The returned session must be closed to release its slot.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.sessions.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a free browser session: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(m.allocatorCtx)

	// Materialize the tab and pin the viewport before handing it out.
	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(m.cfg.ViewportWidth), int64(m.cfg.ViewportHeight)),
	); err != nil {
		cancelTab()
		m.sessions.Release(1)
		return nil, fmt.Errorf("failed to initialize browser tab: %w", err)
	}

	s := &Session{
		logger: m.logger.Named("session"),
		cfg:    m.cfg,
		ctx:    tabCtx,
		close: func() {
			cancelTab()
			m.sessions.Release(1)
		},
	}
	return s, nil
}

// Shutdown terminates the browser process.
func (m *Manager) Shutdown() {
	m.logger.Info("Shutting down browser process")
	m.allocatorCancel()
}
