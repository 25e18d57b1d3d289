package models

// ScanRequest is the payload for POST /api/v1/scan.
type ScanRequest struct {
	// Navigate forces a fresh navigation to the library URL before
	// scanning. Default: false (scan the page as it currently stands).
	Navigate bool `json:"navigate,omitempty"`
}

// ToggleRequest is the payload for POST /api/v1/select/toggle.
type ToggleRequest struct {
	// ID is the library identifier of the card to toggle.
	ID string `json:"id" binding:"required"`
}

// BulkExportRequest is the payload for POST /api/v1/export/bulk.
type BulkExportRequest struct {
	// Mode selects the asset set per record.
	// Allowed: "all" (default), "video-only", "text-only".
	Mode string `json:"mode,omitempty" binding:"omitempty,oneof=all video-only text-only"`
}

// Defaults applies default values to unset fields.
func (r *BulkExportRequest) Defaults() {
	if r.Mode == "" {
		r.Mode = string(ModeAll)
	}
}

// AdExportRequest is the payload for POST /api/v1/export/ad.
type AdExportRequest struct {
	// ID is the library identifier of the card to export.
	ID string `json:"id" binding:"required"`

	// Variant selects the single-item export path.
	// "zip": media + ad-copy bundle. "adcopy": text only. "raw": separate
	// files, no archive. "video"/"image": the single asset.
	Variant string `json:"variant" binding:"required,oneof=zip adcopy raw video image"`
}
