package collector

import (
	"encoding/json"
	"testing"

	"github.com/use-agent/adpack/extractor"
)

// The in-page scan serializes cards to JSON; this pins the wire shape
// shared with the extractor's node type.
func TestCardPayloadDecodesIntoNodeTree(t *testing.T) {
	raw := `[{
		"id": "123456789",
		"html": "<div>...</div>",
		"root": {
			"tag": "div",
			"rect": {"top": 0, "bottom": 400, "left": 0, "right": 300, "width": 300, "height": 400},
			"children": [
				{"tag": "span", "text": "Acme Corp", "font_weight": 700,
				 "rect": {"top": 10, "bottom": 30, "left": 0, "right": 100, "width": 100, "height": 20}},
				{"tag": "img",
				 "attrs": {"src": "https://scontent.example/main.jpg", "width": "300"},
				 "rect": {"top": 40, "bottom": 340, "left": 0, "right": 300, "width": 300, "height": 300}},
				{"tag": "div", "text": "Library ID: 123456789",
				 "rect": {"top": 350, "bottom": 370, "left": 0, "right": 200, "width": 200, "height": 20}}
			]
		}
	}]`

	var payloads []cardPayload
	if err := json.Unmarshal([]byte(raw), &payloads); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
	pl := payloads[0]
	if pl.ID != "123456789" || pl.Root == nil {
		t.Fatalf("payload = %+v", pl)
	}

	rec := extractor.Extract(pl.Root, pl.ID, extractor.DefaultHeuristics())
	if rec.AdvertiserName != "Acme Corp" {
		t.Errorf("advertiser = %q", rec.AdvertiserName)
	}
	if rec.ImageURL != "https://scontent.example/main.jpg" {
		t.Errorf("image = %q", rec.ImageURL)
	}
	if id, ok := extractor.FindCardID(pl.Root); !ok || id != "123456789" {
		t.Errorf("FindCardID = %q, %v", id, ok)
	}
}
