// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

// Session is one live browser tab. It implements schemas.Page by translating
// opaque element references through the locator mini-language and running
// chromedp tasks against the tab context.
type Session struct {
	logger *zap.Logger
	cfg    config.BrowserConfig
	ctx    context.Context

	closeOnce sync.Once
	close     func()
}

// Close releases the tab and its session slot. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(s.close)
}

// combineContext derives a context cancelled when either the session context
// or the caller's operational context is done.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	if secondary == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// run executes chromedp actions under the combined session + caller context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		opCtx, cancelTimeout = context.WithTimeout(opCtx, timeout)
		defer cancelTimeout()
	}
	return chromedp.Run(opCtx, actions...)
}

// queryOption maps a locator kind to the chromedp query mechanism.
func queryOption(loc Locator) chromedp.QueryOption {
	if loc.Kind == KindXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate loads the URL, then sleeps the configured quiet period so the page
// can settle before the next action.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))

	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 45 * time.Second
	}
	if err := s.run(ctx, navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %q failed: %w", url, err)
	}

	if s.cfg.PostLoadWait > 0 {
		select {
		case <-time.After(s.cfg.PostLoadWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Probe inspects the element matching the reference. A reference that matches
// nothing yields Exists=false rather than an error.
func (s *Session) Probe(ctx context.Context, ref string) (schemas.ElementProbe, error) {
	var probe schemas.ElementProbe
	js := jsProbe(Translate(ref))
	if err := s.run(ctx, 5*time.Second, chromedp.Evaluate(js, &probe)); err != nil {
		return schemas.ElementProbe{}, fmt.Errorf("probe failed for reference %q: %w", ref, err)
	}
	return probe, nil
}

// Click scrolls the element into view and clicks it.
func (s *Session) Click(ctx context.Context, ref string) error {
	s.logger.Debug("Clicking element", zap.String("ref", ref))

	loc := Translate(ref)
	opt := queryOption(loc)
	err := s.run(ctx, 15*time.Second,
		chromedp.ScrollIntoView(loc.Query, opt),
		chromedp.Click(loc.Query, opt),
	)
	if err != nil {
		return fmt.Errorf("click failed for reference %q: %w", ref, err)
	}
	return nil
}

// SetValue assigns a value directly to an input-like element through the
// prototype setter and fires input/change events.
func (s *Session) SetValue(ctx context.Context, ref string, value string) error {
	s.logger.Debug("Setting value", zap.String("ref", ref), zap.Int("value_length", len(value)))

	var result string
	js := jsSetValue(Translate(ref), value)
	if err := s.run(ctx, 10*time.Second, chromedp.Evaluate(js, &result)); err != nil {
		return fmt.Errorf("value assignment failed for reference %q: %w", ref, err)
	}
	switch result {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("no element matches reference %q", ref)
	default:
		return fmt.Errorf("element for reference %q is not a fillable control", ref)
	}
}

// Focus moves keyboard focus to the element matching the reference.
func (s *Session) Focus(ctx context.Context, ref string) error {
	loc := Translate(ref)
	if err := s.run(ctx, 10*time.Second, chromedp.Focus(loc.Query, queryOption(loc))); err != nil {
		return fmt.Errorf("focus failed for reference %q: %w", ref, err)
	}
	return nil
}

// TypeText emits synthetic keystrokes into whatever currently has focus.
func (s *Session) TypeText(ctx context.Context, text string) error {
	s.logger.Debug("Typing into focused element", zap.Int("text_length", len(text)))

	typeAction := chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(text).Do(ctx)
	})
	// Budget scales with text length, as typing is emitted key by key.
	timeout := 10*time.Second + time.Duration(len(text)/4)*time.Second
	if err := s.run(ctx, timeout, typeAction); err != nil {
		return fmt.Errorf("synthetic typing failed: %w", err)
	}
	return nil
}

// Screenshot captures the full page as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, 30*time.Second, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

// Location returns the page's current resolved URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, 5*time.Second, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return url, nil
}

// Title returns the current document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, 5*time.Second, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read page title: %w", err)
	}
	return title, nil
}

// HTML returns the serialized outer HTML of the document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, 15*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}
