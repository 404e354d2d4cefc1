package filter

import "jalert/service/model"

// Operation reports whether the field exists and its value matches.
func (p Pattern) Operation(log model.Record, cache FieldCache) (bool, error) {
	value, present, err := cache.Fetch(log, p.Field)
	if err != nil || !present {
		return false, err
	}
	return p.Regexp.Match(value), nil
}

// Operation works as follows:
//  1. patterns are checked in field order, the first absent field or
//     mismatch ends the check and the node does not match
//  2. escapes are only evaluated when every pattern matched, the first
//     matching escape overrides the node
//
// A node without patterns and escapes matches every record.
func (d DenyNode) Operation(log model.Record, cache FieldCache) (bool, error) {
	matched, err := And[Pattern](d.Patterns).Operation(log, cache)
	if err != nil || !matched {
		return false, err
	}
	escaped, err := Or[AllowNode](d.Allow).Operation(log, cache)
	if err != nil {
		return false, err
	}
	return !escaped, nil
}

// Operation is DenyNode.Operation with deny exceptions instead of allow
// escapes.
func (a AllowNode) Operation(log model.Record, cache FieldCache) (bool, error) {
	matched, err := And[Pattern](a.Patterns).Operation(log, cache)
	if err != nil || !matched {
		return false, err
	}
	excepted, err := Or[DenyNode](a.Deny).Operation(log, cache)
	if err != nil {
		return false, err
	}
	return !excepted, nil
}

// Operation reports whether any matcher matches, sharing cache across them.
func (rs *RuleSet) Operation(log model.Record, cache FieldCache) (bool, error) {
	return Or[DenyNode](rs.Matchers).Operation(log, cache)
}

// Evaluate decides one record with a fresh FieldCache.
// The error, if any, is a jerror.JalertEvalError naming the field that could
// not be fetched; it is never returned for a field that is merely absent.
func (rs *RuleSet) Evaluate(log model.Record) (bool, error) {
	return rs.Operation(log, NewFieldCache())
}
