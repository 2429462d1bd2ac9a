package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		ok      bool
		verdict any
	}{
		{"plain", `{"verdict":"true"}`, true, "true"},
		{"surrounded by prose", `Sure! {"verdict":"false"} Hope this helps.`, true, "false"},
		{"brace inside string", `{"verdict":"mixed","reasoning":"uses } and { freely"}`, true, "mixed"},
		{"nested", `{"verdict":"true","meta":{"a":1}}`, true, "true"},
		{"skips invalid block", `{not json} then {"verdict":"unverifiable"}`, true, "unverifiable"},
		{"no object", `no json here`, false, nil},
		{"unbalanced", `{"verdict":"true"`, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := ExtractJSONObject(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.verdict, obj["verdict"])
			}
		})
	}
}
