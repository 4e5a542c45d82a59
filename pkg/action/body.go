package action

import "strconv"

// Body is a decoded JSON object. Accessors tolerate missing keys and
// unexpected types by returning zero values.
type Body map[string]any

// String returns key as a string.
func (b Body) String(key string) string {
	switch v := b[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Bool returns key as a bool.
func (b Body) Bool(key string) bool {
	v, _ := b[key].(bool)
	return v
}

// Strings returns key as a list of strings, skipping non-string elements.
func (b Body) Strings(key string) []string {
	raw, ok := b[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Object returns key as a nested object; never nil.
func (b Body) Object(key string) Body {
	if m, ok := b[key].(map[string]any); ok {
		return Body(m)
	}
	return Body{}
}

// Objects returns key as a list of objects, skipping other elements.
func (b Body) Objects(key string) []Body {
	raw, ok := b[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Body, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Body(m))
		}
	}
	return out
}

// Contains reports whether the string list at key includes want.
func (b Body) Contains(key, want string) bool {
	for _, s := range b.Strings(key) {
		if s == want {
			return true
		}
	}
	return false
}
