package models

import (
	"strings"
)

// AdRecord is one advertisement recovered from a library card.
// It is immutable once returned by the extractor; re-extraction of the
// same card produces a fresh value with the same ID.
type AdRecord struct {
	// ID is the numeric library identifier printed on the card.
	// It uniquely identifies one card for the lifetime of the page session.
	ID string `json:"id"`

	// AdvertiserName is the page name shown at the top of the card.
	// Defaults to "Unknown" when no qualifying element is found.
	AdvertiserName string `json:"advertiser_name"`

	// PrimaryText, Headline, and CTA are best-effort and may be empty.
	PrimaryText string `json:"primary_text,omitempty"`
	Headline    string `json:"headline,omitempty"`
	CTA         string `json:"cta,omitempty"`

	// Media URLs are present only when located on the card.
	VideoURL string `json:"video_url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	LogoURL  string `json:"logo_url,omitempty"`

	// AdvertiserToken and HeadlineToken are sanitized filename fragments
	// derived from AdvertiserName and Headline.
	AdvertiserToken string `json:"advertiser_token"`
	HeadlineToken   string `json:"headline_token"`
}

// HeadlineTokenMax bounds the headline-derived filename fragment.
const HeadlineTokenMax = 30

// HasVideo reports whether a video asset was located on the card.
func (r AdRecord) HasVideo() bool { return r.VideoURL != "" }

// HasImage reports whether a primary image was located on the card.
func (r AdRecord) HasImage() bool { return r.ImageURL != "" }

// FilePrefix builds the deterministic, collision-resistant prefix used
// for every file exported from this record: <advertiser>_<headline>_<id>.
func (r AdRecord) FilePrefix() string {
	return r.AdvertiserToken + "_" + r.HeadlineToken + "_" + r.ID
}

// FinalizeTokens computes the filename tokens from the current advertiser
// name and headline. Called once by the extractor before the record is
// handed to the caller.
func (r *AdRecord) FinalizeTokens() {
	r.AdvertiserToken = SanitizeToken(r.AdvertiserName, "Advertiser", 0)
	r.HeadlineToken = SanitizeToken(r.Headline, "Ad", HeadlineTokenMax)
}

// SanitizeToken replaces every non-alphanumeric rune with an underscore,
// truncating to maxRunes (0 = unbounded) first. An empty input yields the
// fallback unchanged.
func SanitizeToken(s, fallback string, maxRunes int) string {
	if s == "" {
		s = fallback
	}
	if maxRunes > 0 {
		runes := []rune(s)
		if len(runes) > maxRunes {
			s = string(runes[:maxRunes])
		}
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
