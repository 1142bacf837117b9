package metadata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/filefolio/docfolio/constants"
	"github.com/filefolio/docfolio/internal/tags"
)

// Deriver walks an ordered strategy list and post-processes the winning
// result against the tag vocabulary, so near-duplicate tags resolve to
// existing entries regardless of which strategy proposed them.
type Deriver struct {
	strategies []Strategy
	vocab      *tags.Vocabulary
	logger     *slog.Logger
}

func NewDeriver(vocab *tags.Vocabulary, logger *slog.Logger, strategies ...Strategy) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deriver{strategies: strategies, vocab: vocab, logger: logger}
}

// Derive produces {category, tags, suggested filename}. Strategy failures
// (model down, timeout, malformed response) are logged and the next
// strategy is tried; with the rule strategy last this operation only fails
// if no strategies were configured at all.
func (d *Deriver) Derive(ctx context.Context, req Request) (Result, error) {
	req.ExistingTags = d.vocab.AllTags()

	var lastErr error
	for _, s := range d.strategies {
		res, err := s.Derive(ctx, req)
		if err != nil {
			d.logger.Warn("metadata.derive.strategy_failed", "strategy", s.Name(), "error", err)
			lastErr = err
			continue
		}
		return d.settle(res, req), nil
	}
	return Result{}, fmt.Errorf("all derivation strategies failed: %w", lastErr)
}

// settle resolves tags through the vocabulary and enforces the invariants
// every caller relies on: non-empty category, at least one tag.
func (d *Deriver) settle(res Result, req Request) Result {
	res.Tags = d.vocab.ResolveAll(res.Tags)
	if len(res.Tags) == 0 {
		if existing := req.ExistingTags; len(existing) > 0 {
			n := len(existing)
			if n > 3 {
				n = 3
			}
			res.Tags = existing[:n]
		} else if t, _, ok := d.vocab.Resolve(string(res.Category)); ok {
			res.Tags = []string{t}
		}
	}
	if res.Category == "" {
		res.Category = constants.Uncategorized
	}
	if res.SuggestedFilename == "" {
		res.SuggestedFilename = suggestFilename(res.Category, res.Tags, req)
	}
	return res
}
