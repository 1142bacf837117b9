package constants

import (
	"strings"
)

type Category string

const (
	Finance        Category = "Finance"
	Legal          Category = "Legal"
	Medical        Category = "Medical"
	Tax            Category = "Tax"
	Insurance      Category = "Insurance"
	Correspondence Category = "Correspondence"
	Report         Category = "Report"
	Form           Category = "Form"
	Travel         Category = "Travel"
	Education      Category = "Education"
	Other          Category = "Other"
	Uncategorized  Category = "Uncategorized"
)

// allCategories lists the categories a deriver may assign. Uncategorized is
// the fallback for records that never went through derivation and is
// deliberately excluded from the assignable set.
var allCategories = []Category{
	Finance,
	Legal,
	Medical,
	Tax,
	Insurance,
	Correspondence,
	Report,
	Form,
	Travel,
	Education,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"invoice":        Finance,
		"invoices":       Finance,
		"receipt":        Finance,
		"bill":           Finance,
		"payroll":        Finance,
		"bank statement": Finance,
		"statement":      Finance,
		"contract":       Legal,
		"agreement":      Legal,
		"lease":          Legal,
		"prescription":   Medical,
		"health":         Medical,
		"policy":         Insurance,
		"letter":         Correspondence,
		"mail":           Correspondence,
		"tax return":     Tax,
		"itinerary":      Travel,
		"certificate":    Education,
		"transcript":     Education,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
