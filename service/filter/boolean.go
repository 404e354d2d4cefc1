package filter

import "jalert/service/model"

// # Logic
//
// Logic is anything that can be decided against one record. Patterns, both
// node kinds and the combinators below all implement it, and they share the
// record's FieldCache so each field is fetched at most once.
type Logic interface {
	Operation(log model.Record, cache FieldCache) (bool, error)
}

// And stops at the first operand that does not match.
type And[L Logic] []L

func (logic And[L]) Operation(log model.Record, cache FieldCache) (bool, error) {
	for i := range logic {
		ok, err := logic[i].Operation(log, cache)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Or stops at the first operand that matches.
type Or[L Logic] []L

func (logic Or[L]) Operation(log model.Record, cache FieldCache) (bool, error) {
	for i := range logic {
		ok, err := logic[i].Operation(log, cache)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
