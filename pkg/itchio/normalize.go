package itchio

// EnsureArray repairs the upstream serializer quirk where an empty collection
// is sent as {} instead of []. Absent values, empty arrays and empty objects
// become an empty array. Anything else is returned as is: a non-empty object
// is left alone rather than dropped.
func EnsureArray(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return []interface{}{}
	case []interface{}:
		if len(x) == 0 {
			return []interface{}{}
		}
	case map[string]interface{}:
		if len(x) == 0 {
			return []interface{}{}
		}
	case Body:
		if len(x) == 0 {
			return []interface{}{}
		}
	}
	return v
}

// normalizeField replaces body[field] with EnsureArray of it, if present
func normalizeField(body Body, field string) {
	if v, ok := body[field]; ok {
		body[field] = EnsureArray(v)
	}
}
