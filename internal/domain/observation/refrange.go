package observation

import (
	"strings"

	"github.com/careflow/careflow/internal/domain/catalog"
)

// Average-calendar conversion factors. These keep age bounds continuous
// across leap years and must not be rounded mid-calculation.
const (
	daysPerMonth = 30.436875
	daysPerYear  = 365.2425
)

// ageTypeToDays converts a declared bound to days.
func ageTypeToDays(value float64, ageType string) float64 {
	switch ageType {
	case "Months":
		return value * daysPerMonth
	case "Years":
		return value * daysPerYear
	default: // Days
		return value
	}
}

// ResolveReference renders the reference string for a patient against a
// template's rule list. Every matching rule contributes, in declared order;
// this is deliberately additive so overlapping interpretations all surface.
func ResolveReference(rules []catalog.ReferenceRangeRule, gender string, ageInDays float64) string {
	var b strings.Builder
	for _, rule := range rules {
		if rule.AppliesTo != "All" && rule.AppliesTo != gender {
			continue
		}
		switch rule.Age {
		case "Range":
			dayFrom := ageTypeToDays(rule.AgeFrom, rule.FromAgeType)
			dayTo := ageTypeToDays(rule.AgeTo, rule.ToAgeType)
			if dayFrom <= ageInDays && ageInDays <= dayTo {
				b.WriteString(renderRule(rule))
			}
		case "All":
			b.WriteString(renderRule(rule))
		}
	}
	return b.String()
}

// renderRule formats one matching rule as an HTML fragment ending in a
// line break, or returns "" when the rule carries nothing to display.
func renderRule(rule catalog.ReferenceRangeRule) string {
	var body string
	switch {
	case deref(rule.ReferenceFrom) != "" && deref(rule.ReferenceTo) != "":
		body = deref(rule.ReferenceFrom) + "-" + deref(rule.ReferenceTo)
	case deref(rule.Conditions) != "":
		body = deref(rule.Conditions)
	case deref(rule.ShortInterpretation) == "":
		return ""
	}
	if interp := deref(rule.ShortInterpretation); interp != "" {
		body += ": " + interp
	}
	return body + "<br>"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
