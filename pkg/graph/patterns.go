package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// Entity types produced by the default pattern battery.
const (
	EntityTypePerson       = "person"
	EntityTypeOrganization = "organization"
	EntityTypeLocation     = "location"
	EntityTypeDate         = "date"
	EntityTypeCurrency     = "currency"
	EntityTypeConcept      = "concept"
)

// PatternRule describes one regular expression of the extraction battery.
//
// Clean post-processes a raw match and may reject it by returning false.
// Describe renders the human-readable description of an accepted match.
type PatternRule struct {
	EntityType string
	Expr       string
	Clean      func(match string) (string, bool)
	Describe   func(name string) string
}

var (
	orgSuffixes = []string{
		"Inc", "Corp", "Corporation", "LLC", "Ltd", "Company", "Group",
		"University", "Institute", "Foundation", "Association", "Co",
	}
	streetSuffixes = []string{
		"Street", "St", "Avenue", "Ave", "Road", "Rd", "Boulevard", "Blvd",
		"Lane", "Ln", "Drive", "Dr", "Court", "Ct", "Way", "Place", "Pl",
	}
	months = []string{
		"January", "February", "March", "April", "May", "June", "July",
		"August", "September", "October", "November", "December",
	}
	leadingStopWords = map[string]struct{}{
		"The": {}, "A": {}, "An": {}, "In": {}, "On": {}, "At": {}, "By": {},
		"Of": {}, "For": {}, "From": {}, "With": {}, "And": {}, "But": {},
		"Yesterday": {}, "Today": {}, "Tomorrow": {}, "Last": {}, "Next": {},
		"This": {}, "That": {}, "When": {}, "While": {}, "After": {}, "Before": {},
		"Then": {}, "Later": {}, "Earlier": {}, "Meanwhile": {}, "However": {},
		"Also": {}, "Finally": {}, "Recently": {}, "Eventually": {}, "Initially": {},
		"Moreover": {}, "Furthermore": {}, "Afterwards": {}, "Subsequently": {},
		"CEO": {}, "CFO": {}, "CTO": {}, "COO": {}, "President": {}, "Director": {},
		"Chairman": {}, "Founder": {},
	}
	personTitles = []string{"Dr", "Mr", "Mrs", "Ms", "Prof"}
)

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

func trimLeadingStopWords(name string) string {
	words := strings.Fields(name)
	for len(words) > 0 {
		if _, stop := leadingStopWords[words[0]]; !stop {
			break
		}
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func hasTitle(name string) bool {
	for _, t := range personTitles {
		if strings.HasPrefix(name, t+".") {
			return true
		}
	}
	return false
}

func cleanPerson(match string) (string, bool) {
	name := strings.Join(strings.Fields(match), " ")
	if !hasTitle(name) {
		name = trimLeadingStopWords(name)
	}
	words := strings.Fields(name)
	if len(words) == 0 {
		return "", false
	}
	if !hasTitle(name) && len(words) < 2 {
		return "", false
	}
	last := words[len(words)-1]
	for _, s := range orgSuffixes {
		if last == s {
			return "", false
		}
	}
	for _, s := range streetSuffixes {
		if last == s {
			return "", false
		}
	}
	for _, m := range months {
		if words[0] == m {
			return "", false
		}
	}
	return name, true
}

func cleanOrganization(match string) (string, bool) {
	name := trimLeadingStopWords(strings.Join(strings.Fields(match), " "))
	if len(strings.Fields(name)) < 2 {
		return "", false
	}
	return name, true
}

func cleanLocation(match string) (string, bool) {
	name := trimLeadingStopWords(strings.Join(strings.Fields(match), " "))
	return name, name != ""
}

func cleanSpaces(match string) (string, bool) {
	name := strings.Join(strings.Fields(match), " ")
	return name, name != ""
}

// DefaultPatternRules returns the built-in extraction battery, one or more
// expressions per entity type. Earlier rules claim their spans first, so the
// broad person rule comes last.
func DefaultPatternRules() []PatternRule {
	orgSuffix := alternation(orgSuffixes[:len(orgSuffixes)-1])
	street := alternation(streetSuffixes)
	month := alternation(months)
	title := alternation(personTitles)

	return []PatternRule{
		{
			EntityType: EntityTypeOrganization,
			Expr: `\b[A-Z][\w'-]*(?:[ \t]+[A-Z][\w'-]*)*` +
				`(?:[ \t]+&[ \t]+Co|[ \t]+(?:` + orgSuffix + `))\b`,
			Clean:    cleanOrganization,
			Describe: func(name string) string { return fmt.Sprintf("Organization mentioned in the text: %s", name) },
		},
		{
			EntityType: EntityTypeLocation,
			Expr: `\b\d{1,6}[ \t]+(?:[A-Z][a-z]+[ \t]+){1,3}(?:` + street + `)\b` +
				`(?:,[ \t]+[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*,[ \t]+[A-Z]{2}(?:[ \t]+\d{5})?\b)?`,
			Clean:    cleanSpaces,
			Describe: func(name string) string { return fmt.Sprintf("Street address: %s", name) },
		},
		{
			EntityType: EntityTypeLocation,
			Expr:       `\b[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*,[ \t]+[A-Z]{2}\b`,
			Clean:      cleanLocation,
			Describe:   func(name string) string { return fmt.Sprintf("Location (city and state): %s", name) },
		},
		{
			EntityType: EntityTypeDate,
			Expr:       `\b(?:0?[1-9]|1[0-2])/(?:0?[1-9]|[12]\d|3[01])/\d{4}\b`,
			Clean:      cleanSpaces,
			Describe:   func(name string) string { return fmt.Sprintf("Date reference: %s", name) },
		},
		{
			EntityType: EntityTypeDate,
			Expr:       `\b(?:` + month + `)[ \t]+\d{1,2},[ \t]*\d{4}\b`,
			Clean:      cleanSpaces,
			Describe:   func(name string) string { return fmt.Sprintf("Date reference: %s", name) },
		},
		{
			EntityType: EntityTypeCurrency,
			Expr:       `\$\d+(?:,\d{3})*(?:\.\d+)?(?:[ \t]+(?:thousand|million|billion|trillion))?\b`,
			Clean:      cleanSpaces,
			Describe:   func(name string) string { return fmt.Sprintf("Monetary amount: %s", name) },
		},
		{
			EntityType: EntityTypeCurrency,
			Expr:       `\b\d+(?:,\d{3})*(?:\.\d+)?[ \t]+dollars\b`,
			Clean:      cleanSpaces,
			Describe:   func(name string) string { return fmt.Sprintf("Monetary amount: %s", name) },
		},
		{
			EntityType: EntityTypePerson,
			Expr: `\b(?:(?:` + title + `)\.[ \t]+[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){0,2}` +
				`|[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){1,2})\b`,
			Clean:    cleanPerson,
			Describe: func(name string) string { return fmt.Sprintf("Person mentioned in the text: %s", name) },
		},
	}
}

type compiledRule struct {
	PatternRule
	re *regexp.Regexp
}

func compileRules(rules []PatternRule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if strings.TrimSpace(r.EntityType) == "" {
			return nil, structuralErrorf("pattern rule %d has no entity type", i)
		}
		re, err := regexp.Compile(r.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s rule %d: %v", ErrPatternCompile, r.EntityType, i, err)
		}
		if r.Clean == nil {
			r.Clean = cleanSpaces
		}
		if r.Describe == nil {
			entityType := r.EntityType
			r.Describe = func(name string) string { return fmt.Sprintf("%s: %s", entityType, name) }
		}
		compiled = append(compiled, compiledRule{PatternRule: r, re: re})
	}
	return compiled, nil
}
