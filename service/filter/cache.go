package filter

import (
	jerror "jalert/error"
	"jalert/service/model"
)

type cachedField struct {
	value   []byte
	present bool
}

// FieldCache memoizes field fetches for one record. Absent fields are
// cached too. A failed fetch is not cached.
type FieldCache map[string]cachedField

func NewFieldCache() FieldCache {
	return make(FieldCache)
}

// Fetch returns the field from the cache, fetching it from log on a miss.
func (c FieldCache) Fetch(log model.Record, name string) ([]byte, bool, error) {
	if field, ok := c[name]; ok {
		return field.value, field.present, nil
	}
	value, present, err := log.FetchField(name)
	if err != nil {
		return nil, false, jerror.JalertEvalError{
			Code:   jerror.ErrFieldFetch,
			Field:  name,
			Origin: err,
			Msg:    "Failed to get field of a journal entry",
		}
	}
	c[name] = cachedField{value: value, present: present}
	return value, present, nil
}
