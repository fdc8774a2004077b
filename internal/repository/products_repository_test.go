package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldTerms(t *testing.T) {
	assert.Empty(t, foldTerms(nil))
	assert.Empty(t, foldTerms([]string{"", "  "}))
	assert.Equal(t, []string{"елочка", "creme"}, foldTerms([]string{"Ёлочка", "Crème"}))
}

func TestNameMatchesTerms(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  bool
	}{
		{"Мастика битумная Т-65", []string{"мастика", "т-65"}, true},
		{"Мастика битумная Т-65", []string{"мастика", "т-75"}, false},
		{"Мастика Ёлочка", []string{"елочка"}, true},
		{"Bitumen Crème", []string{"bitumen", "creme"}, true},
		{"Праймер 100%", []string{"100%"}, true},
		{"Праймер 100", []string{"10_"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nameMatchesTerms(tt.name, foldTerms(tt.terms)))
		})
	}
}

func TestSatisfactionRate(t *testing.T) {
	assert.InDelta(t, 0.0, satisfactionRate(0, 0), 1e-9)
	assert.InDelta(t, 0.75, satisfactionRate(3, 1), 1e-9)
	assert.InDelta(t, 1.0, satisfactionRate(2, 0), 1e-9)
}
