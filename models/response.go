package models

// ScanResponse is the response for POST /api/v1/scan.
type ScanResponse struct {
	// Success indicates whether the scan completed without errors.
	Success bool `json:"success"`

	// Records are the ads extracted from the page, in document order.
	Records []AdRecord `json:"records"`

	// Total is len(Records), kept explicit for UI convenience.
	Total int `json:"total"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// StateResponse is the response for GET /api/v1/state. It is the full
// store snapshot the UI surface renders from.
type StateResponse struct {
	// SelectedIDs lists the selected library IDs in insertion order.
	SelectedIDs []string `json:"selected_ids"`

	// SelectedCount is len(SelectedIDs).
	SelectedCount int `json:"selected_count"`

	// Progress is the current export progress model.
	Progress ExportProgress `json:"progress"`

	// PanelVisible mirrors the UI visibility flag.
	PanelVisible bool `json:"panel_visible"`
}

// ExportResponse is the response for the export endpoints.
type ExportResponse struct {
	Success bool `json:"success"`

	// RunID identifies a bulk export run accepted for background
	// processing. Empty for synchronous single-item exports.
	RunID string `json:"run_id,omitempty"`

	// SavedAs is the save primitive's opaque identifier for synchronous
	// single-item exports.
	SavedAs string `json:"saved_as,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"` // "healthy" or "degraded"
	Uptime        string `json:"uptime"`
	BrowserState  string `json:"browser_state"` // "connected" or "disconnected"
	SelectedCount int    `json:"selected_count"`
	ExportActive  bool   `json:"export_active"`
	Version       string `json:"version"`
}
