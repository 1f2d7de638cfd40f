package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeYearIntegers(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want int
		ok   bool
	}{
		{"in range", 3, 3, true},
		{"lower bound", 1, 1, true},
		{"upper bound", 5, 5, true},
		{"zero", 0, 0, false},
		{"negative", -2, 0, false},
		{"out of range", 9, 0, false},
		{"int64", int64(2), 2, true},
		{"json float", float64(4), 4, true},
		{"fractional float", 2.5, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeYear(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeYearStrings(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"1", 1, true},
		{" 2 ", 2, true},
		{"1st", 1, true},
		{"2nd", 2, true},
		{"3rd", 3, true},
		{"4th", 4, true},
		{"First", 1, true},
		{"FOURTH", 4, true},
		{"three", 3, true},
		{"fifth", 5, true},
		{"", 0, false},
		{"sixth", 0, false},
		{"0th", 0, false},
		{"year two", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := NormalizeYear(tc.raw)
			assert.Equal(t, tc.ok, ok, "raw=%q", tc.raw)
			assert.Equal(t, tc.want, got, "raw=%q", tc.raw)
		})
	}
}

func TestNormalizeYearPointersAndNil(t *testing.T) {
	year := 2
	raw := "2nd"
	got, ok := NormalizeYear(&year)
	assert.True(t, ok)
	assert.Equal(t, 2, got)

	got, ok = NormalizeYear(&raw)
	assert.True(t, ok)
	assert.Equal(t, 2, got)

	_, ok = NormalizeYear(nil)
	assert.False(t, ok)

	var nilInt *int
	_, ok = NormalizeYear(nilInt)
	assert.False(t, ok)
}
