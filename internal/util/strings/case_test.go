package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Name", "name"},
		{"FirstName", "first_name"},
		{"HTTPRequest", "http_request"},
		{"UserID", "user_id"},
		{"Point2D", "point2_d"},
		{"already_snake", "already_snake"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToSnakeCase(tt.input))
		})
	}
}

func TestToScreamingSnakeCase(t *testing.T) {
	assert.Equal(t, "DARK_RED", ToScreamingSnakeCase("DarkRed"))
	assert.Equal(t, "RED", ToScreamingSnakeCase("Red"))
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("Outer"))
	assert.True(t, IsIdentifier("field_1"))
	assert.True(t, IsIdentifier("_hidden"))
	assert.False(t, IsIdentifier(""))
	assert.False(t, IsIdentifier("1field"))
	assert.False(t, IsIdentifier("has-dash"))
	assert.False(t, IsIdentifier("Outer.Inner"))
}
