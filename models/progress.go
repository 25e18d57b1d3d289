package models

import "math"

// ExportProgress tracks a bulk export run. Mutated only through the
// store's UpdateProgress action while a run is active; read-only to the
// API layer.
type ExportProgress struct {
	Active        bool   `json:"active"`
	CurrentBatch  int    `json:"current_batch"`
	TotalBatches  int    `json:"total_batches"`
	ItemsDone     int    `json:"items_done"`
	ItemsTotal    int    `json:"items_total"`
	Percent       int    `json:"percent"`
	StatusMessage string `json:"status_message"`
}

// ProgressPercent computes the rounded completion percentage.
// Zero when itemsTotal is not positive.
func ProgressPercent(itemsDone, itemsTotal int) int {
	if itemsTotal <= 0 {
		return 0
	}
	return int(math.Round(float64(itemsDone) / float64(itemsTotal) * 100))
}
