package metadata

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/filefolio/docfolio/constants"
)

// RuleStrategy assigns metadata by keyword matching against the extracted
// text and the filename. It is deterministic and never returns an error,
// which is what makes it a safe pipeline terminus when the model service
// is unreachable.
type RuleStrategy struct{}

func NewRuleStrategy() *RuleStrategy { return &RuleStrategy{} }

func (*RuleStrategy) Name() string { return "rules" }

// ruleTable is evaluated top to bottom; the first rule with a keyword hit
// decides category and primary tag.
var ruleTable = []struct {
	keywords []string
	category constants.Category
	tag      string
}{
	{[]string{"invoice", "bill", "rechnung"}, constants.Finance, "invoice"},
	{[]string{"receipt", "quittung"}, constants.Finance, "receipt"},
	{[]string{"payroll", "salary", "lohnabrechnung", "gehalt"}, constants.Finance, "payroll"},
	{[]string{"bank statement", "kontoauszug", "account statement"}, constants.Finance, "statement"},
	{[]string{"contract", "agreement", "lease", "vertrag"}, constants.Legal, "contract"},
	{[]string{"tax", "steuer", "vat"}, constants.Tax, "tax"},
	{[]string{"insurance", "policy", "versicherung"}, constants.Insurance, "insurance"},
	{[]string{"prescription", "diagnosis", "patient", "arzt"}, constants.Medical, "medical"},
	{[]string{"itinerary", "boarding pass", "booking confirmation"}, constants.Travel, "travel"},
	{[]string{"certificate", "transcript", "diploma"}, constants.Education, "certificate"},
	{[]string{"application form", "form"}, constants.Form, "form"},
	{[]string{"report"}, constants.Report, "report"},
	{[]string{"dear"}, constants.Correspondence, "letter"},
}

// keyword matching is word-bounded so "information" does not hit "form"
var ruleMatchers = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(ruleTable))
	for i, rule := range ruleTable {
		quoted := make([]string, len(rule.keywords))
		for j, k := range rule.keywords {
			quoted[j] = regexp.QuoteMeta(k)
		}
		out[i] = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return out
}()

// years are picked out of alphanumeric tokens rather than via \b so that
// filename separators like the underscore in "invoice_2024.pdf" also count
// as boundaries
var (
	reToken = regexp.MustCompile(`[a-z0-9]+`)
	reYear  = regexp.MustCompile(`^20[0-9]{2}$`)
)

func yearTags(haystack string, max int) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, tok := range reToken.FindAllString(haystack, -1) {
		if !reYear.MatchString(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) == max {
			break
		}
	}
	return out
}

func (s *RuleStrategy) Derive(_ context.Context, req Request) (Result, error) {
	haystack := strings.ToLower(req.Text + " " + req.Filename)

	category := constants.Other
	tagSet := []string{"document"}
	for i, rule := range ruleTable {
		if ruleMatchers[i].MatchString(haystack) {
			category = rule.category
			tagSet = []string{rule.tag}
			break
		}
	}

	// year tags from text or filename
	tagSet = append(tagSet, yearTags(haystack, 3)...)
	if strings.Contains(haystack, "urgent") {
		tagSet = append(tagSet, "urgent")
	}

	return Result{
		Category:          category,
		Tags:              tagSet,
		SuggestedFilename: suggestFilename(category, tagSet, req),
		DerivedBy:         constants.DerivedByRules,
	}, nil
}

// suggestFilename builds a deterministic, collision-averse name such as
// "finance_invoice_20240312.pdf". The category prefix and full date keep it
// distinct from typical user filenames.
func suggestFilename(category constants.Category, tagSet []string, req Request) string {
	parts := []string{strings.ToLower(string(category))}
	if len(tagSet) > 0 && tagSet[0] != strings.ToLower(string(category)) {
		parts = append(parts, sanitizeNamePart(tagSet[0]))
	}
	parts = append(parts, req.UploadedAt.Format("20060102"))
	return fmt.Sprintf("%s.pdf", strings.Join(parts, "_"))
}

var reUnsafeName = regexp.MustCompile(`[^a-z0-9-]+`)

func sanitizeNamePart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = reUnsafeName.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
