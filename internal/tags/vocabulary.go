// Package tags maintains the canonical vocabulary of document tags.
//
// A tag's identity is its normalized form: trimmed, lowercased, internal
// whitespace collapsed, English-only. Candidates that normalize to an
// existing entry — or to a trivial plural of one — resolve to that entry
// instead of minting a near-duplicate.
package tags

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Repository is the vocabulary's persistence contract. Ensure must be safe
// to call concurrently for the same name (insert-or-ignore semantics).
type Repository interface {
	AllTags(ctx context.Context) ([]string, error)
	EnsureTags(ctx context.Context, names []string) error
}

type Vocabulary struct {
	repo   Repository
	logger *slog.Logger

	mu    sync.RWMutex
	known map[string]struct{}
}

// Load reads the persisted vocabulary once at startup.
func Load(ctx context.Context, repo Repository, logger *slog.Logger) (*Vocabulary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	names, err := repo.AllTags(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}
	logger.Info("tags.vocabulary.loaded", "count", len(known))
	return &Vocabulary{repo: repo, logger: logger, known: known}, nil
}

// Normalize canonicalizes a raw tag. ok is false when the candidate is
// empty after cleanup or is not English per policy: any rune outside
// ASCII letters, digits and light punctuation rejects the tag (we ask the
// model to translate rather than transliterate ourselves).
func Normalize(raw string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		return "", false
	}
	for _, r := range t {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == ' ' || r == '-' || r == '&' || r == '\'' || r == '.':
		default:
			return "", false
		}
	}
	return t, true
}

// AllTags returns the vocabulary sorted, for prompt construction and filters.
func (v *Vocabulary) AllTags() []string {
	v.mu.RLock()
	out := make([]string, 0, len(v.known))
	for t := range v.known {
		out = append(out, t)
	}
	v.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Resolve maps a raw candidate to a vocabulary entry when one exists,
// otherwise to its normalized form as a new tag. ok is false when the
// candidate fails normalization.
func (v *Vocabulary) Resolve(raw string) (tag string, existing, ok bool) {
	t, ok := Normalize(raw)
	if !ok {
		return "", false, false
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if _, hit := v.known[t]; hit {
		return t, true, true
	}
	// trivial-pluralization fold: "invoice" and "invoices" are one tag
	for _, variant := range pluralVariants(t) {
		if _, hit := v.known[variant]; hit {
			return variant, true, true
		}
	}
	for k := range v.known {
		for _, variant := range pluralVariants(k) {
			if variant == t {
				return k, true, true
			}
		}
	}
	return t, false, true
}

// ResolveAll resolves a candidate list, dropping rejects and duplicates
// while preserving order.
func (v *Vocabulary) ResolveAll(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t, _, ok := v.Resolve(r)
		if !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Commit persists any new tags and records them in memory. The repository's
// insert-or-ignore makes concurrent commits of the same new tag converge on
// one row; the in-memory set only ever lags behind the table, never ahead.
func (v *Vocabulary) Commit(ctx context.Context, resolved []string) error {
	if len(resolved) == 0 {
		return nil
	}
	if err := v.repo.EnsureTags(ctx, resolved); err != nil {
		return err
	}
	v.mu.Lock()
	for _, t := range resolved {
		if _, hit := v.known[t]; !hit {
			v.known[t] = struct{}{}
			v.logger.Debug("tags.vocabulary.added", "tag", t)
		}
	}
	v.mu.Unlock()
	return nil
}

// pluralVariants returns shorter forms of t under the fixed plural rule:
// strip one trailing "s", or a trailing "es". Nothing fancier — stemming
// beyond this is the prompt's job, not the vocabulary's.
func pluralVariants(t string) []string {
	var out []string
	if strings.HasSuffix(t, "es") && len(t) > 4 {
		out = append(out, t[:len(t)-2])
	}
	if strings.HasSuffix(t, "s") && len(t) > 3 {
		out = append(out, t[:len(t)-1])
	}
	return out
}
