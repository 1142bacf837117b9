package metadata

import (
	"strings"

	"github.com/filefolio/docfolio/constants"
)

const (
	// excerptLimit bounds the prompt: enough for the model to classify,
	// cheap enough for a local instance.
	excerptLimit = 1000
	maxTags      = 5
)

// buildSystemPrompt composes the system message: English-only tags, bias
// toward reusing the current vocabulary, category restricted to the enum.
func buildSystemPrompt(existingTags []string) string {
	existing := "none yet"
	if len(existingTags) > 0 {
		existing = strings.Join(existingTags, ", ")
	}

	parts := []string{
		"You are a document organizer. Return ONLY JSON that matches the provided JSON Schema.",
		"Tags MUST be in English even if the document is in German, French, or any other language.",
		"TRANSLATE concepts to English tags (e.g., \"Lohnabrechnung\" -> \"payroll\", \"Brutto\" -> \"gross\"); never copy foreign words into tags.",
		"Existing tags in the system: " + existing + ".",
		"STRONGLY PREFER reusing existing tags when they are relevant; only create new English tags if none apply.",
		"Keep tags lowercase and simple (e.g., \"invoice\", \"payroll\", \"tax\", \"2024\"); provide 3-5 of them.",
		"Choose exactly one category from the enum; if uncertain, choose 'Other'. Allowed categories: " +
			strings.Join(constants.AsStringSlice(), ", ") + ".",
		"Suggest a short descriptive snake_case filename ending in .pdf.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// buildUserPrompt packages the text excerpt and filename hint.
func buildUserPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Document excerpt:\n")
	excerpt := strings.TrimSpace(req.Text)
	if len(excerpt) > excerptLimit {
		b.WriteString(excerpt[:excerptLimit])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(excerpt)
	}
	b.WriteString("\n\nOriginal filename: ")
	b.WriteString(req.Filename)
	return b.String()
}
