package parse

import (
	"fmt"
	"slices"
	"strings"
)

// OrderTerm is one "field:direction" element of an order expression.
type OrderTerm struct {
	Field string
	Desc  bool
}

// ParseOrder parses expressions like "date:asc,time:desc". The direction
// defaults to ascending. Only fields listed in allowed are accepted.
func ParseOrder(raw string, allowed []string) ([]OrderTerm, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var terms []OrderTerm
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		field, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		field = strings.ToLower(strings.TrimSpace(field))
		if !slices.Contains(allowed, field) {
			return nil, fmt.Errorf("invalid order field %q", field)
		}
		if seen[field] {
			return nil, fmt.Errorf("order field %q given twice", field)
		}
		seen[field] = true

		term := OrderTerm{Field: field}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			term.Desc = true
		default:
			return nil, fmt.Errorf("invalid order direction %q for %s", dir, field)
		}
		terms = append(terms, term)
	}
	return terms, nil
}
