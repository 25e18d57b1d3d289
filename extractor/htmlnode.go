package extractor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// maxCardClimb bounds the ancestor search from the ID label to the card
// root, matching the live-page scanner.
const maxCardClimb = 15

// Cards parses static HTML and returns the card subtrees as Node trees.
//
// With a non-empty selector, every matching element is treated as a card
// root. With an empty selector, cards are discovered the way the live
// scanner does it: find the "Library ID:" label, then climb ancestors
// until a subtree containing first-party media is reached.
//
// Static markup carries no layout, so the resulting trees have no
// geometry beyond width/height attributes; the extraction heuristics
// degrade to their document-order fallbacks.
func Cards(rawHTML, selector string, h Heuristics) ([]*Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("extractor: parse HTML: %w", err)
	}

	if selector != "" {
		sel, err := cascadia.Parse(selector)
		if err != nil {
			return nil, fmt.Errorf("extractor: parse card selector: %w", err)
		}
		var cards []*Node
		for _, match := range cascadia.QueryAll(doc.Get(0), sel) {
			cards = append(cards, fromHTMLNode(match))
		}
		return cards, nil
	}

	mediaSel := fmt.Sprintf(`video, img[src*=%q]`, h.AssetHostMarker)
	seen := make(map[*html.Node]struct{})
	var cards []*Node

	doc.Find("div, span").Each(func(_ int, s *goquery.Selection) {
		if !strings.Contains(ownText(s.Get(0)), "Library ID:") {
			return
		}
		root := s
		for i := 0; i < maxCardClimb; i++ {
			root = root.Parent()
			if root.Length() == 0 {
				return
			}
			if goquery.NodeName(root) == "body" {
				return
			}
			if root.Find(mediaSel).Length() > 0 {
				rootNode := root.Get(0)
				if _, dup := seen[rootNode]; !dup {
					seen[rootNode] = struct{}{}
					cards = append(cards, fromHTMLNode(rootNode))
				}
				return
			}
		}
	})

	return cards, nil
}

// ownText concatenates the direct text children of an html.Node.
func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// fromHTMLNode converts a parsed element into the abstract Node shape.
// Inline style font weight and width/height attributes are the only
// style/geometry signals static markup can provide.
func fromHTMLNode(n *html.Node) *Node {
	out := &Node{Tag: n.Data}

	if len(n.Attr) > 0 {
		out.Attrs = make(map[string]string, len(n.Attr))
		for _, a := range n.Attr {
			out.Attrs[a.Key] = a.Val
		}
		out.FontWeight = styleFontWeight(out.Attrs["style"])
		out.Rect.Width = parseDim(out.Attrs["width"])
		out.Rect.Height = parseDim(out.Attrs["height"])
	}

	var text []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if t := strings.TrimSpace(c.Data); t != "" {
				text = append(text, t)
			}
		case html.ElementNode:
			if c.Data == "script" || c.Data == "style" {
				continue
			}
			out.Children = append(out.Children, fromHTMLNode(c))
		}
	}
	out.Text = strings.Join(text, " ")

	return out
}

// styleFontWeight extracts a font weight from an inline style attribute.
// Returns 0 when absent or unparseable.
func styleFontWeight(style string) int {
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok || strings.TrimSpace(k) != "font-weight" {
			continue
		}
		v = strings.TrimSpace(v)
		switch v {
		case "bold", "bolder":
			return 700
		case "normal":
			return 400
		}
		if w, err := strconv.Atoi(v); err == nil {
			return w
		}
	}
	return 0
}

// parseDim parses a width/height attribute, tolerating a "px" suffix.
func parseDim(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
