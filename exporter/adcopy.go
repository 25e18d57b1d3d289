package exporter

import (
	"fmt"
	"strings"

	"github.com/use-agent/adpack/models"
)

const adCopyRule = "══════════════════════════════════════════════"

// AdCopy renders the fixed-format, human-readable text summary exported
// alongside (or instead of) a record's media.
func AdCopy(rec models.AdRecord) string {
	var b strings.Builder
	b.WriteString(adCopyRule + "\n")
	fmt.Fprintf(&b, "          AD-COPY DATA - %s\n", rec.ID)
	b.WriteString(adCopyRule + "\n")
	fmt.Fprintf(&b, "ADVERTISER: %s\n", rec.AdvertiserName)
	fmt.Fprintf(&b, "ID: %s\n\n", rec.ID)
	fmt.Fprintf(&b, "PRIMARY TEXT:\n%s\n\n", orNA(rec.PrimaryText))
	fmt.Fprintf(&b, "HEADLINE:\n%s\n\n", orNA(rec.Headline))
	fmt.Fprintf(&b, "CTA:\n%s\n\n", orNA(rec.CTA))
	b.WriteString("MEDIA LINKS:\n")
	fmt.Fprintf(&b, "Video: %s\n", orNone(rec.VideoURL))
	fmt.Fprintf(&b, "Image: %s\n", orNone(rec.ImageURL))
	fmt.Fprintf(&b, "Logo: %s\n", orNone(rec.LogoURL))
	b.WriteString(adCopyRule)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
