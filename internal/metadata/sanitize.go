package metadata

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/filefolio/docfolio/constants"
	"github.com/filefolio/docfolio/internal/tags"
)

// modelResponse is the shape we accept from the model after validation.
type modelResponse struct {
	Category          string   `json:"category"`
	Tags              []string `json:"tags"`
	SuggestedFilename string   `json:"suggested_filename,omitempty"`
}

// reJSONObject pulls the first JSON object out of a response that may be
// wrapped in markdown fences or prose despite the format instruction.
var reJSONObject = regexp.MustCompile(`(?s)\{.*\}`)

// normalizeAndSanitizeJSON
// - Extracts the JSON object from a possibly chatty response
// - Renames known synonyms (filename -> suggested_filename)
// - Drops null/empty entries and unknown keys
// - Lowercases tags, strips non-English ones, caps the count
func normalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	match := reJSONObject.Find(raw)
	if match == nil {
		return nil, nil, fmt.Errorf("sanitize: no JSON object in response")
	}

	var m map[string]any
	if err := json.Unmarshal(match, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("filename", "suggested_filename")
	renamed("suggested_name", "suggested_filename")
	renamed("name", "suggested_filename")

	// 2) tags: keep only English candidates that survive normalization
	if v, ok := m["tags"]; ok {
		var kept []string
		if arr, isArr := v.([]any); isArr {
			for _, item := range arr {
				s, isStr := item.(string)
				if !isStr {
					dropped = append(dropped, "tags(type)")
					continue
				}
				t, tagOK := tags.Normalize(s)
				if !tagOK {
					dropped = append(dropped, "tag:"+s)
					continue
				}
				kept = append(kept, t)
				if len(kept) == maxTags {
					break
				}
			}
		}
		if len(kept) == 0 {
			delete(m, "tags")
			dropped = append(dropped, "tags(empty)")
		} else {
			m["tags"] = kept
		}
	}

	// 3) trim obvious strings
	for _, k := range []string{"category", "suggested_filename"} {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	// fold category synonyms onto the enum ("bill" -> Finance)
	if v, ok := m["category"].(string); ok {
		cat, known := constants.Canonicalize(v)
		if !known {
			dropped = append(dropped, "category:"+v)
		}
		m["category"] = string(cat)
	}

	// 4) remove unknown keys (strict additionalProperties = false friendliness)
	allowed := map[string]struct{}{
		"category": {}, "tags": {}, "suggested_filename": {},
	}
	for k := range m {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.derive.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}
