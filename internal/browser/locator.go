// internal/browser/locator.go
package browser

import (
	"fmt"
	"strings"
)

// LocatorKind selects the query mechanism used against the page.
type LocatorKind int

const (
	KindCSS LocatorKind = iota
	KindXPath
)

// Locator is the concrete, page-queryable form of an element reference.
type Locator struct {
	Query string
	Kind  LocatorKind
}

// roleNodeTests maps interactive ARIA roles to the XPath node tests that
// match both the explicit role attribute and the implicit native elements.
var roleNodeTests = map[string][]string{
	"button":   {"button", "input[@type='submit']", "input[@type='button']", "*[@role='button']"},
	"link":     {"a[@href]", "*[@role='link']"},
	"textbox":  {"input[not(@type) or @type='text' or @type='search' or @type='email' or @type='password' or @type='url' or @type='tel']", "textarea", "*[@role='textbox']"},
	"checkbox": {"input[@type='checkbox']", "*[@role='checkbox']"},
	"radio":    {"input[@type='radio']", "*[@role='radio']"},
	"menuitem": {"*[@role='menuitem']"},
	"option":   {"option", "*[@role='option']"},
	"tab":      {"*[@role='tab']"},
	"dialog":   {"dialog", "*[@role='dialog']"},
	"combobox": {"select", "*[@role='combobox']"},
}

// Translate interprets an opaque element reference string and produces a
// Locator. Supported forms:
//
//	css=SELECTOR          explicit CSS selector
//	id=VALUE              shorthand for #VALUE
//	xpath=EXPR or //EXPR  explicit XPath
//	text=FRAGMENT         elements whose own text contains FRAGMENT
//	role=ROLE[name='N']   ARIA role with optional accessible-name filter
//	anything else         treated as a CSS selector
//
// The executor never parses references itself; this is the only place their
// syntax is known.
func Translate(ref string) Locator {
	ref = strings.TrimSpace(ref)

	switch {
	case strings.HasPrefix(ref, "css="):
		return Locator{Query: strings.TrimPrefix(ref, "css="), Kind: KindCSS}

	case strings.HasPrefix(ref, "id="):
		return Locator{Query: "#" + strings.TrimPrefix(ref, "id="), Kind: KindCSS}

	case strings.HasPrefix(ref, "xpath="):
		return Locator{Query: strings.TrimPrefix(ref, "xpath="), Kind: KindXPath}

	case strings.HasPrefix(ref, "//") || strings.HasPrefix(ref, "(//"):
		return Locator{Query: ref, Kind: KindXPath}

	case strings.HasPrefix(ref, "text="):
		text := strings.TrimPrefix(ref, "text=")
		return Locator{
			Query: fmt.Sprintf("//*[text()[contains(normalize-space(.), %s)]]", xpathLiteral(text)),
			Kind:  KindXPath,
		}

	case strings.HasPrefix(ref, "role="):
		return translateRole(strings.TrimPrefix(ref, "role="))

	default:
		return Locator{Query: ref, Kind: KindCSS}
	}
}

// translateRole handles role=ROLE and role=ROLE[name='...'].
func translateRole(spec string) Locator {
	role := spec
	name := ""
	if i := strings.Index(spec, "["); i >= 0 {
		role = spec[:i]
		rest := spec[i:]
		// Accept [name='...'] and [name="..."].
		if strings.HasPrefix(rest, "[name=") && strings.HasSuffix(rest, "]") {
			name = strings.Trim(rest[len("[name=") : len(rest)-1], `'"`)
		}
	}
	role = strings.ToLower(strings.TrimSpace(role))

	tests, ok := roleNodeTests[role]
	if !ok {
		tests = []string{fmt.Sprintf("*[@role=%s]", xpathLiteral(role))}
	}

	predicate := ""
	if name != "" {
		lit := xpathLiteral(name)
		predicate = fmt.Sprintf(
			"[contains(normalize-space(.), %s) or @aria-label=%s or @name=%s or @value=%s or @title=%s]",
			lit, lit, lit, lit, lit,
		)
	}

	branches := make([]string, len(tests))
	for i, t := range tests {
		branches[i] = "//" + t + predicate
	}
	return Locator{Query: strings.Join(branches, " | "), Kind: KindXPath}
}

// xpathLiteral quotes a string for embedding in an XPath expression. XPath 1.0
// has no escape syntax, so strings containing both quote kinds fall back to
// concat().
func xpathLiteral(s string) string {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	default:
		parts := strings.Split(s, "'")
		quoted := make([]string, 0, len(parts)*2)
		for i, p := range parts {
			if i > 0 {
				quoted = append(quoted, `"'"`)
			}
			if p != "" {
				quoted = append(quoted, "'"+p+"'")
			}
		}
		return "concat(" + strings.Join(quoted, ", ") + ")"
	}
}
