package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil slice", input: nil, want: nil},
		{name: "empty slice", input: []string{}, want: []string{}},
		{name: "single element", input: []string{"foo"}, want: []string{"foo"}},
		{name: "trims whitespace", input: []string{"  foo  ", "bar  "}, want: []string{"foo", "bar"}},
		{name: "drops duplicates keeping order", input: []string{"foo", "bar", "foo", "bar"}, want: []string{"foo", "bar"}},
		{name: "drops empties", input: []string{"foo", "", "  ", "bar"}, want: []string{"foo", "bar"}},
		{name: "duplicate after trim", input: []string{" foo", "foo "}, want: []string{"foo"}},
		{name: "case sensitive", input: []string{"Foo", "foo"}, want: []string{"Foo", "foo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.input))
		})
	}
}
