package main

import (
	"github.com/goccy/go-json"
)

// recordMetadata is stored as JSON in the records.metadata column.
type recordMetadata struct {
	Provider  string    `json:"provider"`
	Source    string    `json:"source"`
	Converted bool      `json:"converted"`
	WriteErr  string    `json:"writeError,omitempty"`
	Exif      *ExifData `json:"exif,omitempty"`
}

// BuildMetadataJSON describes how a record was produced and what the final
// file's EXIF says. Never returns an empty string; defaults to "{}".
func BuildMetadataJSON(finalPath string, meta recordMetadata) string {
	if ed, err := ExtractExif(finalPath); err == nil && ed != nil {
		meta.Exif = ed
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}
