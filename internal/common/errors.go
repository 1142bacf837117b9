package common

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors wrapped throughout the pipeline. Callers branch with
// errors.Is; only ErrUnreadablePDF and ErrStorage abort an upload.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnreadablePDF = errors.New("not a parseable PDF")
	ErrStorage       = errors.New("storage failure")
	ErrDuplicate     = errors.New("duplicate content")
)

// DuplicateError reports a fingerprint collision with an already stored
// document. The caller renders it as a conflict naming the existing record.
type DuplicateError struct {
	DocumentID       string
	OriginalFilename string
	UploadedAt       time.Time
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate content: already uploaded as %q (document %s) on %s",
		e.OriginalFilename, e.DocumentID, e.UploadedAt.Format("2006-01-02"))
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// AsDuplicate unwraps err into a *DuplicateError if one is in the chain.
func AsDuplicate(err error) (*DuplicateError, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}
