package lifecycle

import (
	"strings"
)

// Sanitizer strips a configured set of runes from every string value in an
// application's form data, recursively through nested objects and arrays.
// Non-string values pass through untouched.
type Sanitizer struct {
	runes map[rune]struct{}
}

func NewSanitizer(runes string) *Sanitizer {
	set := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		set[r] = struct{}{}
	}
	return &Sanitizer{runes: set}
}

// Sanitize returns a cleaned copy of data. The input map is not mutated.
func (s *Sanitizer) Sanitize(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	cleaned := make(map[string]interface{}, len(data))
	for k, v := range data {
		cleaned[k] = s.sanitizeValue(v)
	}
	return cleaned
}

func (s *Sanitizer) sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return s.strip(val)
	case map[string]interface{}:
		return s.Sanitize(val)
	case []interface{}:
		cleaned := make([]interface{}, len(val))
		for i, item := range val {
			cleaned[i] = s.sanitizeValue(item)
		}
		return cleaned
	default:
		return v
	}
}

func (s *Sanitizer) strip(in string) string {
	if len(s.runes) == 0 {
		return in
	}
	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		if _, drop := s.runes[r]; drop {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
