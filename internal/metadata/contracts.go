package metadata

import (
	"context"
	"time"

	"github.com/filefolio/docfolio/constants"
)

// Request carries everything a strategy may consult: the extracted text
// (possibly empty), the original filename, the current tag vocabulary, and
// the upload time used for deterministic filename suggestions.
type Request struct {
	Text         string
	Filename     string
	ExistingTags []string
	UploadedAt   time.Time
}

// Result is the derived organizational metadata.
type Result struct {
	Category          constants.Category
	Tags              []string
	SuggestedFilename string
	DerivedBy         constants.DerivedBy
}

// Strategy is one way of deriving metadata. Strategies are tried in order
// until one succeeds; the rule strategy never fails, so a deriver ending in
// it cannot fail either.
type Strategy interface {
	Name() string
	Derive(ctx context.Context, req Request) (Result, error)
}
