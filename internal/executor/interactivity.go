// internal/executor/interactivity.go
package executor

import (
	"context"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// inherentTags are elements that are interactive by nature.
var inherentTags = map[string]bool{
	"button": true, "a": true, "input": true, "select": true,
	"textarea": true, "summary": true, "option": true,
}

// clickableRoles are ARIA roles that mark an element as a click target.
var clickableRoles = map[string]bool{
	"button": true, "link": true, "menuitem": true, "option": true,
	"tab": true, "checkbox": true, "radio": true,
}

// clickable reports whether a probed element can meaningfully receive a
// click: visible, with geometry, and either inherently interactive, carrying
// an interactive role, or wired up with a click handler or tab index.
func clickable(p schemas.ElementProbe) bool {
	if !p.Visible || !p.HasBox() {
		return false
	}
	enabled := !p.Disabled
	switch {
	case inherentTags[p.Tag] && enabled:
		return true
	case clickableRoles[p.Role] && enabled:
		return true
	case (p.HasClickHandler || p.HasTabIndex) && (enabled || p.HasBox()):
		return true
	}
	return false
}

// isTextInput distinguishes text-entry inputs from click-style inputs
// (checkboxes, radios, submit buttons).
func isTextInput(p schemas.ElementProbe) bool {
	switch p.Tag {
	case "textarea":
		return true
	case "input":
		switch p.InputType {
		case "hidden", "submit", "button", "reset", "image", "checkbox", "radio":
			return false
		default:
			// text, password, email, search, tel, url, number, date, ...
			return true
		}
	}
	return false
}

// fillable reports whether a probed element can accept text: a text-input
// control, a contenteditable region, or a text-box role.
func fillable(p schemas.ElementProbe) bool {
	if !p.Visible {
		return false
	}
	if isTextInput(p) || p.Editable {
		return true
	}
	return p.Role == "textbox" || p.Role == "searchbox"
}

// interactivityCheckFor maps an action kind to the capability its target must
// have. Kinds with no requirement return nil.
func interactivityCheckFor(kind schemas.ActionType) func(schemas.ElementProbe) bool {
	switch kind {
	case schemas.ActionClick:
		return clickable
	case schemas.ActionFill:
		return fillable
	default:
		return nil
	}
}

// filterInteractive is an advisory pre-resolution filter: it drops candidates
// that already resolve to a visible element failing the capability check
// (a decorative <div> matching a fuzzy text reference, say). Candidates that
// do not resolve yet are kept; the resolver may still see them appear.
func (e *Executor) filterInteractive(ctx context.Context, refs []string, check func(schemas.ElementProbe) bool) []string {
	if check == nil {
		return refs
	}
	kept := make([]string, 0, len(refs))
	for _, ref := range refs {
		probe, err := e.page.Probe(ctx, ref)
		if err != nil || !probe.Exists || !probe.Visible || check(probe) {
			kept = append(kept, ref)
		}
	}
	return kept
}
