package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapSex(t *testing.T) {
	for code, label := range SexLabels {
		assert.Equal(t, label, MapSex(code), "code %q", code)
	}

	tests := []struct {
		name string
		code string
	}{
		{"blank", ""},
		{"dash", "-"},
		{"lowercase", "f"},
		{"unknown letter", "H"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapSex(tt.code))
		})
	}
}

func TestMapDescent(t *testing.T) {
	assert.Len(t, DescentLabels, 19)
	for code, label := range DescentLabels {
		assert.Equal(t, label, MapDescent(code), "code %q", code)
	}

	for _, code := range []string{"", "-", "E", "Q", "h", "Hispanic/Latin/Mexican"} {
		assert.Equal(t, code, MapDescent(code), "unmapped code %q should pass through", code)
	}
}

func TestStripTimeSuffix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"LAPD export", "03/01/2020 12:00:00 AM", "03/01/2020"},
		{"already clean", "03/01/2020", "03/01/2020"},
		{"other time kept", "03/01/2020 01:30:00 PM", "03/01/2020 01:30:00 PM"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := StripTimeSuffix(tt.input)
			assert.Equal(t, tt.expected, once)
			assert.Equal(t, once, StripTimeSuffix(once), "strip should be idempotent")
		})
	}
}
