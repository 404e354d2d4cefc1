package filter

import (
	"regexp"
)

// Pattern binds a field name to the expression its raw value must match.
// Matching is a search over the bytes of the value, not an anchored match.
type Pattern struct {
	Field  string
	Regexp *regexp.Regexp
}

// # DenyNode
//
// DenyNode matches a record when all of its patterns match and none of its
// Allow escapes does. Patterns are sorted by field name.
type DenyNode struct {
	Patterns []Pattern
	Allow    []AllowNode
}

// # AllowNode
//
// AllowNode is the mirror of DenyNode: all of its patterns must match and
// none of its Deny exceptions may.
type AllowNode struct {
	Patterns []Pattern
	Deny     []DenyNode
}

// # RuleSet
//
// RuleSet is the root of the rule tree, decoded from the `match` list.
// A record triggers when any of the Matchers matches. Order is kept from
// the source but does not change the verdict.
type RuleSet struct {
	Matchers []DenyNode
}

func (p Pattern) Equal(other Pattern) bool {
	if p.Field != other.Field {
		return false
	}
	if p.Regexp == nil || other.Regexp == nil {
		return p.Regexp == other.Regexp
	}
	return p.Regexp.String() == other.Regexp.String()
}

func (d *DenyNode) Equal(other *DenyNode) bool {
	if !patternsEqual(d.Patterns, other.Patterns) || len(d.Allow) != len(other.Allow) {
		return false
	}
	for i := range d.Allow {
		if !d.Allow[i].Equal(&other.Allow[i]) {
			return false
		}
	}
	return true
}

func (a *AllowNode) Equal(other *AllowNode) bool {
	if !patternsEqual(a.Patterns, other.Patterns) || len(a.Deny) != len(other.Deny) {
		return false
	}
	for i := range a.Deny {
		if !a.Deny[i].Equal(&other.Deny[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether both rule sets have the same shape, field names and
// expression sources.
func (rs *RuleSet) Equal(other *RuleSet) bool {
	if rs == nil || other == nil {
		return rs == other
	}
	if len(rs.Matchers) != len(other.Matchers) {
		return false
	}
	for i := range rs.Matchers {
		if !rs.Matchers[i].Equal(&other.Matchers[i]) {
			return false
		}
	}
	return true
}

// Fields returns every distinct field name referenced anywhere in the tree.
func (rs *RuleSet) Fields() map[string]struct{} {
	fields := make(map[string]struct{})
	for i := range rs.Matchers {
		rs.Matchers[i].collectFields(fields)
	}
	return fields
}

func (d *DenyNode) collectFields(fields map[string]struct{}) {
	for _, p := range d.Patterns {
		fields[p.Field] = struct{}{}
	}
	for i := range d.Allow {
		d.Allow[i].collectFields(fields)
	}
}

func (a *AllowNode) collectFields(fields map[string]struct{}) {
	for _, p := range a.Patterns {
		fields[p.Field] = struct{}{}
	}
	for i := range a.Deny {
		a.Deny[i].collectFields(fields)
	}
}

func patternsEqual(a, b []Pattern) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
