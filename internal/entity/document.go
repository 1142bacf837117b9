package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/filefolio/docfolio/constants"
)

// Document represents a stored document for data transfer between layers.
type Document struct {
	ID               uuid.UUID            `json:"id"`
	OriginalFilename string               `json:"original_filename"`
	DerivedFilename  *string              `json:"derived_filename,omitempty"`
	Category         constants.Category   `json:"category"`
	Tags             []string             `json:"tags"`
	ExtractedText    string               `json:"extracted_text"`
	TextSource       constants.TextSource `json:"text_source"`
	DerivedBy        constants.DerivedBy  `json:"derived_by"`
	Fingerprint      string               `json:"fingerprint"`
	StorageKey       string               `json:"storage_key"`
	FileSize         int64                `json:"file_size"`
	UploadedAt       time.Time            `json:"uploaded_at"`
}
