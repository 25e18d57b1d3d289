package models

import "fmt"

// ExportMode selects which assets a bulk export includes per record.
type ExportMode string

const (
	// ModeAll exports image, video, and the ad-copy text per record.
	ModeAll ExportMode = "all"

	// ModeVideoOnly exports only video assets; records without a video
	// contribute nothing to the job.
	ModeVideoOnly ExportMode = "video-only"

	// ModeTextOnly exports only the generated ad-copy text per record.
	ModeTextOnly ExportMode = "text-only"
)

// ParseExportMode validates a mode string from the API layer.
func ParseExportMode(s string) (ExportMode, error) {
	switch ExportMode(s) {
	case ModeAll, ModeVideoOnly, ModeTextOnly:
		return ExportMode(s), nil
	}
	return "", NewExportError(ErrCodeInvalidInput,
		fmt.Sprintf("unknown export mode %q (want all, video-only, or text-only)", s), nil)
}

// JobItem is one entry of a batch job. Exactly one of URL and Data is set:
// URL items are fetched by the packager, Data items are inserted inline.
type JobItem struct {
	// Name is the target filename inside the archive.
	Name string `json:"name"`

	// URL is the remote source for fetched items.
	URL string `json:"url,omitempty"`

	// Data is the inline payload for text items.
	Data string `json:"data,omitempty"`
}

// IsRemote reports whether the item must be fetched over the network.
func (it JobItem) IsRemote() bool { return it.URL != "" }

// BatchJob is the unit of work handed to the packager. Transient:
// constructed per batch, never persisted.
type BatchJob struct {
	Items       []JobItem `json:"items"`
	ArchiveName string    `json:"archive_name"`
}

// ArchiveResult is the packaged archive ready for the save primitive.
// Payload is base64-encoded because the save boundary only accepts a
// request-safe textual representation of binary data.
type ArchiveResult struct {
	Filename string `json:"filename"`
	Payload  string `json:"payload"`
}
