package adapter

import "strings"

// Registry resolves a site host to its rule set. Lookup is pure over the
// rules loaded at startup; it never fails — hosts without an override get the
// built-in generic rule.
type Registry struct {
	rules map[string]Rule
}

func NewRegistry(overrides map[string]Rule) *Registry {
	rules := make(map[string]Rule, len(overrides))
	for domain, rule := range overrides {
		rules[strings.ToLower(strings.TrimSpace(domain))] = rule
	}
	return &Registry{rules: rules}
}

// Resolve returns the rule for a host: exact domain match first, then the
// longest configured-domain suffix match, else the default rule.
func (r *Registry) Resolve(host string) Rule {
	host = strings.ToLower(strings.TrimSpace(host))
	if rule, ok := r.rules[host]; ok {
		return rule
	}
	var (
		best    string
		bestSet bool
		found   Rule
	)
	for domain, rule := range r.rules {
		if strings.HasSuffix(host, "."+domain) && len(domain) > len(best) {
			best, found, bestSet = domain, rule, true
		}
	}
	if bestSet {
		return found
	}
	return DefaultRule()
}

// DefaultRule is the best-effort generic rule set: static fetch, every anchor
// is a potential result, dates mined from the surrounding item text.
func DefaultRule() Rule {
	return Rule{
		QueryEncoding: EncodeSingle,
		FetchMode:     FetchStatic,
		Listing: ListingRules{
			DateFromItem: true,
		},
	}
}
