package extractor

import (
	"regexp"
	"strings"
)

// Node is the renderer-independent view of one DOM element. The collector
// produces these by snapshotting live card subtrees in the page; the HTML
// adapter builds them from static markup; tests build them by hand.
type Node struct {
	// Tag is the lowercase element name ("div", "img", "video", ...).
	Tag string `json:"tag"`

	// Text is the element's direct text content, trimmed. Children's text
	// is not included; use FullText for the subtree.
	Text string `json:"text,omitempty"`

	// Attrs holds the element attributes ("src", "alt", "poster", ...).
	Attrs map[string]string `json:"attrs,omitempty"`

	// FontWeight is the computed font weight (400 regular, 700 bold).
	// Zero when the source cannot provide computed styles.
	FontWeight int `json:"font_weight,omitempty"`

	// Rect is the layout bounding box. All-zero when the source cannot
	// provide geometry (static HTML without layout).
	Rect Rect `json:"rect"`

	Children []*Node `json:"children,omitempty"`
}

// Rect is an element's bounding box in page coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether no geometry is available for the element.
func (r Rect) IsZero() bool {
	return r.Top == 0 && r.Bottom == 0 && r.Left == 0 && r.Right == 0 &&
		r.Width == 0 && r.Height == 0
}

// Attr returns the named attribute or "".
func (n *Node) Attr(name string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// FullText concatenates the trimmed text of the whole subtree in document
// order, separated by newlines.
func (n *Node) FullText() string {
	var parts []string
	n.Walk(func(d *Node) bool {
		if d.Text != "" {
			parts = append(parts, d.Text)
		}
		return true
	})
	return strings.Join(parts, "\n")
}

// Walk visits the subtree in document order (pre-order). The visitor
// returns false to skip a node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// find returns every descendant (including n) satisfying pred, in
// document order.
func (n *Node) find(pred func(*Node) bool) []*Node {
	var out []*Node
	n.Walk(func(d *Node) bool {
		if pred(d) {
			out = append(out, d)
		}
		return true
	})
	return out
}

// findFirst returns the first descendant (including n) satisfying pred.
func (n *Node) findFirst(pred func(*Node) bool) *Node {
	var out *Node
	n.Walk(func(d *Node) bool {
		if out != nil {
			return false
		}
		if pred(d) {
			out = d
			return false
		}
		return true
	})
	return out
}

// libraryIDPattern matches the "Library ID: 123..." label printed in each
// card's footer. The shorter "ID: 123" form is accepted too.
var libraryIDPattern = regexp.MustCompile(`ID:\s*(\d+)`)

// FindCardID scans the subtree text for the library identifier label.
func FindCardID(n *Node) (string, bool) {
	var id string
	n.Walk(func(d *Node) bool {
		if id != "" {
			return false
		}
		if d.Text != "" && strings.Contains(d.Text, "ID:") {
			if m := libraryIDPattern.FindStringSubmatch(d.Text); m != nil {
				id = m[1]
				return false
			}
		}
		return true
	})
	return id, id != ""
}
