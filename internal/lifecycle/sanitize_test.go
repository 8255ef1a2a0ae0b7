package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const defaultRunes = "<>＜＞‹›«»⟨⟩〈〉"

func TestSanitizer_StripsBracketVariants(t *testing.T) {
	s := NewSanitizer(defaultRunes)

	cleaned := s.Sanitize(map[string]interface{}{
		"aProperty": "val<ue",
		"fullwidth": "＜script＞",
		"guillemet": "«quoted»",
	})

	assert.Equal(t, "value", cleaned["aProperty"])
	assert.Equal(t, "script", cleaned["fullwidth"])
	assert.Equal(t, "quoted", cleaned["guillemet"])
}

func TestSanitizer_RecursesNestedStructures(t *testing.T) {
	s := NewSanitizer(defaultRunes)

	cleaned := s.Sanitize(map[string]interface{}{
		"nested": map[string]interface{}{
			"inner": "a<b",
		},
		"list": []interface{}{"x>y", 42, map[string]interface{}{"deep": "‹z›"}},
	})

	nested := cleaned["nested"].(map[string]interface{})
	assert.Equal(t, "ab", nested["inner"])

	list := cleaned["list"].([]interface{})
	assert.Equal(t, "xy", list[0])
	assert.Equal(t, 42, list[1])
	assert.Equal(t, "z", list[2].(map[string]interface{})["deep"])
}

func TestSanitizer_LeavesNonStringsAndInputUntouched(t *testing.T) {
	s := NewSanitizer(defaultRunes)
	original := map[string]interface{}{"aProperty": "val<ue", "count": 3, "flag": true}

	cleaned := s.Sanitize(original)

	assert.Equal(t, 3, cleaned["count"])
	assert.Equal(t, true, cleaned["flag"])
	assert.Equal(t, "val<ue", original["aProperty"], "input map must not be mutated")
}

func TestSanitizer_EmptyRuneSetIsIdentity(t *testing.T) {
	s := NewSanitizer("")
	cleaned := s.Sanitize(map[string]interface{}{"aProperty": "val<ue"})
	assert.Equal(t, "val<ue", cleaned["aProperty"])
}
