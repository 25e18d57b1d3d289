// Package extractor recovers typed ad records from unlabeled, visually
// styled card markup. All heuristics operate on the abstract Node tree so
// they run identically against live-page snapshots, static HTML, and
// synthetic test trees.
package extractor

import (
	"strings"

	"github.com/use-agent/adpack/models"
)

// Heuristics carries the tunable thresholds of the extraction pass.
// The defaults mirror the layout of the ad library at the time of writing;
// none of them is a guaranteed-correct constant.
type Heuristics struct {
	// BoldWeight is the minimum computed font weight that marks the
	// advertiser name element.
	BoldWeight int

	// MinAdvertiserLen is the minimum text length for an advertiser
	// candidate, filtering single glyphs and icons.
	MinAdvertiserLen int

	// AssetHostMarker is the URL substring identifying first-party asset
	// hosting; only such images are considered ad media.
	AssetHostMarker string

	// LogoMaxDim bounds the width and height of a logo candidate.
	LogoMaxDim float64

	// MainImageMinWidth is the minimum layout width of the primary image.
	MainImageMinWidth float64

	// CTAKeywords is the fixed call-to-action vocabulary, matched
	// case-insensitively against whole text blocks.
	CTAKeywords []string

	// HeadlineWindow is the vertical distance above the CTA within which
	// the headline is searched.
	HeadlineWindow float64

	// PrimaryMinLen is the minimum length of a primary-text block.
	PrimaryMinLen int
}

// DefaultHeuristics returns the standard thresholds.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		BoldWeight:        600,
		MinAdvertiserLen:  3,
		AssetHostMarker:   "scontent",
		LogoMaxDim:        100,
		MainImageMinWidth: 150,
		CTAKeywords: []string{
			"Shop Now", "Learn More", "Sign Up", "Apply Now",
			"Book Now", "Contact Us", "Download", "Get Offer",
		},
		HeadlineWindow: 150,
		PrimaryMinLen:  30,
	}
}

// textBlock is a leaf text-bearing element with its geometry.
type textBlock struct {
	text string
	rect Rect
}

// Extract turns a card subtree into an AdRecord. It never fails: fields
// that cannot be located degrade to defaults, and the returned record is
// always valid. Re-invoking on the same unmodified tree yields an
// identical record.
func Extract(card *Node, id string, h Heuristics) models.AdRecord {
	rec := models.AdRecord{
		ID:             id,
		AdvertiserName: "Unknown",
	}
	if card == nil {
		rec.FinalizeTokens()
		return rec
	}

	extractAdvertiser(card, h, &rec)
	extractMedia(card, h, &rec)
	extractText(card, h, &rec)

	rec.FinalizeTokens()
	return rec
}

// extractAdvertiser finds the first bold, non-trivial, non-boilerplate
// text element and takes its first line.
func extractAdvertiser(card *Node, h Heuristics, rec *models.AdRecord) {
	n := card.findFirst(func(d *Node) bool {
		if d.FontWeight < h.BoldWeight {
			return false
		}
		text := d.FullText()
		if len(text) <= h.MinAdvertiserLen {
			return false
		}
		return !strings.Contains(strings.ToLower(text), "sponsored")
	})
	if n == nil {
		return
	}
	line := n.FullText()
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if line = strings.TrimSpace(line); line != "" {
		rec.AdvertiserName = line
	}
}

// extractMedia locates the video, the logo, and the primary image.
func extractMedia(card *Node, h Heuristics, rec *models.AdRecord) {
	var poster string
	if v := card.findFirst(func(d *Node) bool { return d.Tag == "video" }); v != nil {
		src := v.Attr("src")
		if src == "" {
			if s := v.findFirst(func(d *Node) bool { return d.Tag == "source" }); s != nil {
				src = s.Attr("src")
			}
		}
		rec.VideoURL = src
		poster = v.Attr("poster")
	}

	imgs := card.find(func(d *Node) bool {
		return d.Tag == "img" && strings.Contains(d.Attr("src"), h.AssetHostMarker)
	})

	// Logo: smallest near-square image with alt text, both dims bounded.
	var logo *Node
	for _, img := range imgs {
		w, ht := img.Rect.Width, img.Rect.Height
		if img.Attr("alt") == "" || w <= 0 || ht <= 0 {
			continue
		}
		if w >= h.LogoMaxDim || ht >= h.LogoMaxDim {
			continue
		}
		if !nearSquare(w, ht) {
			continue
		}
		if logo == nil || w*ht < logo.Rect.Width*logo.Rect.Height {
			logo = img
		}
	}
	if logo != nil {
		rec.LogoURL = logo.Attr("src")
	}

	// Primary image: first materially larger remaining image.
	for _, img := range imgs {
		if img == logo {
			continue
		}
		if img.Rect.Width > h.MainImageMinWidth {
			rec.ImageURL = img.Attr("src")
			break
		}
	}
	if rec.ImageURL == "" && poster != "" {
		rec.ImageURL = poster
	}
}

// nearSquare reports whether the box is within 20% of square.
func nearSquare(w, h float64) bool {
	max := w
	if h > max {
		max = h
	}
	diff := w - h
	if diff < 0 {
		diff = -diff
	}
	return diff <= max*0.2
}

// extractText identifies the CTA, the headline, and the primary text from
// the card's leaf text blocks.
func extractText(card *Node, h Heuristics, rec *models.AdRecord) {
	var blocks []textBlock
	card.Walk(func(d *Node) bool {
		if len(d.Children) == 0 && d.Text != "" {
			blocks = append(blocks, textBlock{text: d.Text, rect: d.Rect})
		}
		return true
	})
	if len(blocks) == 0 {
		return
	}

	// CTA: exact keyword match, case-insensitive.
	ctaIdx := -1
	for i, b := range blocks {
		for _, kw := range h.CTAKeywords {
			if strings.EqualFold(b.text, kw) {
				ctaIdx = i
				break
			}
		}
		if ctaIdx >= 0 {
			break
		}
	}
	if ctaIdx >= 0 {
		rec.CTA = blocks[ctaIdx].text
		rec.Headline = headlineNear(blocks, ctaIdx, h.HeadlineWindow)
	}

	// Primary text: first block long enough that is not the headline.
	for _, b := range blocks {
		if len(b.text) > h.PrimaryMinLen && (rec.Headline == "" || b.text != rec.Headline) {
			rec.PrimaryText = b.text
			break
		}
	}
}

// headlineNear picks the longest text block whose bottom edge sits
// strictly above the CTA within the vertical window. When the tree has no
// geometry, it falls back to the longest non-CTA block preceding the CTA
// in document order.
func headlineNear(blocks []textBlock, ctaIdx int, window float64) string {
	cta := blocks[ctaIdx]

	if cta.rect.IsZero() {
		best := ""
		for i := 0; i < ctaIdx; i++ {
			if len(blocks[i].text) > len(best) {
				best = blocks[i].text
			}
		}
		return best
	}

	best := ""
	for i, b := range blocks {
		if i == ctaIdx {
			continue
		}
		if b.rect.Bottom <= cta.rect.Top && b.rect.Bottom > cta.rect.Top-window {
			if len(b.text) > len(best) {
				best = b.text
			}
		}
	}
	return best
}
