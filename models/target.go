package models

// ExtractionTarget is one named page to extract quote data from.
// The JSON shape matches the public batch API: {"empresa": ..., "url": ...}.
type ExtractionTarget struct {
	Name string `json:"empresa" binding:"required"`
	URL  string `json:"url" binding:"required"`
}
