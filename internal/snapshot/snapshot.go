// internal/snapshot/snapshot.go
package snapshot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// Summarizer extracts a visible-element summary from a live page. The
// executor consumes the result only as input to plan-generation and recovery
// requests; it never inspects it.
type Summarizer struct {
	logger      *zap.Logger
	viewport    schemas.Viewport
	maxElements int
	maxText     int
}

// NewSummarizer creates a summarizer with sane caps on summary size.
func NewSummarizer(logger *zap.Logger, viewport schemas.Viewport) *Summarizer {
	return &Summarizer{
		logger:      logger.Named("snapshot"),
		viewport:    viewport,
		maxElements: 80,
		maxText:     25,
	}
}

// interactiveRoles mirrors the role set the executor treats as clickable.
var interactiveRoles = map[string]bool{
	"button": true, "link": true, "menuitem": true, "option": true,
	"tab": true, "checkbox": true, "radio": true, "textbox": true,
	"combobox": true, "dialog": true,
}

// skipSubtrees are elements whose text content is never user-visible.
var skipSubtrees = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "svg": true,
}

// Capture reads the page's current DOM and distills it into a PageSnapshot.
func (s *Summarizer) Capture(ctx context.Context, page schemas.Page) (*schemas.PageSnapshot, error) {
	url, err := page.Location(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	title, err := page.Title(ctx)
	if err != nil {
		s.logger.Warn("Failed to read page title for snapshot", zap.Error(err))
	}

	rawHTML, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to parse page HTML: %w", err)
	}

	snap := &schemas.PageSnapshot{
		URL:      url,
		Title:    title,
		Viewport: s.viewport,
	}
	s.walk(doc, snap)

	s.logger.Debug("Page snapshot captured",
		zap.String("url", url),
		zap.Int("elements", len(snap.Elements)),
		zap.Int("text_fragments", len(snap.TextFragments)))
	return snap, nil
}

func (s *Summarizer) walk(n *html.Node, snap *schemas.PageSnapshot) {
	if n.Type == html.ElementNode {
		if skipSubtrees[n.Data] {
			return
		}
		if sum, ok := summarizeElement(n); ok && len(snap.Elements) < s.maxElements {
			snap.Elements = append(snap.Elements, sum)
		}
	}

	if n.Type == html.TextNode && len(snap.TextFragments) < s.maxText {
		if text := strings.TrimSpace(n.Data); len(text) >= 12 {
			if len(text) > 160 {
				text = text[:160]
			}
			snap.TextFragments = append(snap.TextFragments, text)
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		s.walk(child, snap)
	}
}

// summarizeElement decides whether a node is worth reporting and builds its
// summary, including a reference string the collaborator can echo back.
func summarizeElement(n *html.Node) (schemas.ElementSummary, bool) {
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}

	role := strings.ToLower(attrs["role"])
	interactive := false
	switch n.Data {
	case "a":
		interactive = attrs["href"] != ""
	case "button", "input", "textarea", "select", "summary":
		interactive = attrs["type"] != "hidden"
	default:
		interactive = interactiveRoles[role] || attrs["onclick"] != ""
	}
	if !interactive {
		return schemas.ElementSummary{}, false
	}
	if _, disabled := attrs["disabled"]; disabled {
		return schemas.ElementSummary{}, false
	}

	text := strings.TrimSpace(innerText(n))
	if len(text) > 64 {
		text = text[:64]
	}

	name := attrs["aria-label"]
	if name == "" {
		name = attrs["placeholder"]
	}
	if name == "" {
		name = text
	}

	sum := schemas.ElementSummary{
		Tag:  n.Data,
		Role: role,
		Name: name,
		Text: text,
		Ref:  synthesizeRef(n.Data, role, attrs, text),
	}

	// Keep only the attributes that help the collaborator tell elements apart.
	for _, key := range []string{"id", "name", "type", "href", "placeholder", "aria-label", "data-testid"} {
		if v, ok := attrs[key]; ok && v != "" {
			if sum.Attrs == nil {
				sum.Attrs = make(map[string]string)
			}
			sum.Attrs[key] = v
		}
	}
	return sum, true
}

// synthesizeRef builds the most specific reference available for an element,
// in the same mini-language the browser layer interprets.
func synthesizeRef(tag, role string, attrs map[string]string, text string) string {
	if id := attrs["id"]; id != "" {
		return "id=" + id
	}
	if testid := attrs["data-testid"]; testid != "" {
		return fmt.Sprintf("css=%s[data-testid='%s']", tag, testid)
	}
	if name := attrs["name"]; name != "" {
		return fmt.Sprintf("css=%s[name='%s']", tag, name)
	}
	if role != "" {
		if label := attrs["aria-label"]; label != "" {
			return fmt.Sprintf("role=%s[name='%s']", role, label)
		}
		if text != "" {
			return fmt.Sprintf("role=%s[name='%s']", role, text)
		}
		return "role=" + role
	}
	if text != "" {
		return "text=" + text
	}
	return "css=" + tag
}

func innerText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			return
		}
		if node.Type == html.ElementNode && skipSubtrees[node.Data] {
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
