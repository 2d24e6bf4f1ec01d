// api/schemas/browser.go
package schemas

// ElementProbe is a read-only snapshot of one on-page element's state, taken
// by the browser layer for a single reference. All interactivity decisions in
// the executor are made from this structure, never from the live DOM.
type ElementProbe struct {
	Exists  bool    `json:"exists"`
	Visible bool    `json:"visible"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`

	Tag       string `json:"tag,omitempty"`
	InputType string `json:"inputType,omitempty"`
	Role      string `json:"role,omitempty"`

	Disabled        bool `json:"disabled"`
	Editable        bool `json:"editable"`
	HasClickHandler bool `json:"hasClickHandler"`
	HasTabIndex     bool `json:"hasTabIndex"`

	Text string `json:"text,omitempty"`
}

// HasBox reports whether the element has a non-degenerate bounding box.
func (p ElementProbe) HasBox() bool {
	return p.Width > 0 && p.Height > 0
}

// Viewport is the page viewport size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ElementSummary is one visible element in a page snapshot, as handed to the
// plan-generation collaborator. Ref is a synthesized element reference the
// collaborator can echo back in plans and recovery responses.
type ElementSummary struct {
	Tag   string            `json:"tag"`
	Role  string            `json:"role,omitempty"`
	Name  string            `json:"name,omitempty"`
	Text  string            `json:"text,omitempty"`
	Ref   string            `json:"ref"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// PageSnapshot is the visible-element summary of a live page. The executor
// never inspects it beyond forwarding it inside recovery requests.
type PageSnapshot struct {
	URL           string           `json:"url"`
	Title         string           `json:"title,omitempty"`
	Viewport      Viewport         `json:"viewport"`
	Elements      []ElementSummary `json:"elements,omitempty"`
	TextFragments []string         `json:"text_fragments,omitempty"`
}
