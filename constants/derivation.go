package constants

// TextSource records how a document's text was obtained.
type TextSource string

// Stable values (store these exact strings in DB).
const (
	TextSourceNative TextSource = "native" // extracted from the PDF text layer
	TextSourceOCR    TextSource = "ocr"    // rasterized pages run through OCR
	TextSourceNone   TextSource = "none"   // neither path produced text
)

// DerivedBy records which metadata strategy produced category/tags/filename.
type DerivedBy string

const (
	DerivedByLLM   DerivedBy = "llm"
	DerivedByRules DerivedBy = "rules"
)
