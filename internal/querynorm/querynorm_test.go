package querynorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasic(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase and trim", "  Мастика  ", "мастика"},
		{"collapses inner whitespace", "битум   БН\t90/10", "битум бн 90/10"},
		{"folds yo", "Ёмкость", "емкость"},
		{"keeps short i", "Йод", "йод"},
		{"strips latin accents", "Crème", "creme"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Basic(tt.input))
		})
	}
}

func TestVariants_LetterDigitCode(t *testing.T) {
	got := Variants("БМ-50")

	require.NotEmpty(t, got)
	assert.Equal(t, "бм-50", got[0])
	assert.Contains(t, got, "бм50", "condensed form")
	assert.Contains(t, got, "бм 50", "opposite separator")
}

func TestVariants_CondensedCodeGetsSeparators(t *testing.T) {
	got := Variants("т65")

	assert.Equal(t, []string{"т65", "т-65", "т 65"}, got)
}

func TestVariants_WordPlusSingleLetter(t *testing.T) {
	got := Variants("брит а")

	assert.Equal(t, []string{"брит а", "брита", "брит-а", "брит"}, got)
}

func TestVariants_MultiTokenPairs(t *testing.T) {
	got := Variants("мастика битумная т-65")

	assert.Equal(t, "мастика битумная т-65", got[0])
	assert.Contains(t, got, "мастикабитумная")
	assert.Contains(t, got, "мастика-битумная")
	assert.Contains(t, got, "битумная т-65")
	assert.Contains(t, got, "мастика битумная т 65")
}

func TestVariants_ShortQueries(t *testing.T) {
	for _, q := range []string{"Ab", "т", " БН ", "a-"} {
		t.Run(q, func(t *testing.T) {
			assert.Equal(t, []string{Basic(q)}, Variants(q))
		})
	}
}

func TestVariants_Empty(t *testing.T) {
	assert.Empty(t, Variants(""))
	assert.Empty(t, Variants("   "))
}

func TestVariants_NoDuplicates(t *testing.T) {
	for _, q := range []string{"БМ-50", "брит а", "мастика битумная т-65", "праймер"} {
		got := Variants(q)
		seen := map[string]bool{}

		for _, v := range got {
			assert.False(t, seen[v], "duplicate variant %q for %q", v, q)
			seen[v] = true
		}
	}
}

func TestVariants_BaseIsIdempotent(t *testing.T) {
	for _, q := range []string{"БМ-50", "  Мастика   Т-65 ", "Ёж", "брит а", "crème brûlée"} {
		first := Variants(q)
		require.NotEmpty(t, first)

		again := Variants(first[0])
		require.NotEmpty(t, again)
		assert.Equal(t, first[0], again[0], "query %q", q)
		assert.Equal(t, Basic(first[0]), first[0])
	}
}

func TestVariants_AreNormalized(t *testing.T) {
	queries := []string{"мастика - т65", "праймер-", "-битум", "БМ-50", "мастика  битумная т-65", "брит а", "a - b - c1"}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			for _, v := range Variants(q) {
				assert.Equal(t, Basic(v), v)
				assert.NotContains(t, v, "--")
				assert.False(t, strings.HasPrefix(v, "-") && v != Basic(q), "variant %q", v)
				assert.False(t, strings.HasSuffix(v, "-") && v != Basic(q), "variant %q", v)
			}
		})
	}
}

func TestVariants_DanglingHyphens(t *testing.T) {
	got := Variants("мастика - т65")

	assert.Equal(t, "мастика - т65", got[0])
	assert.Contains(t, got, "мастика т65")
	assert.Contains(t, got, "мастика-т65")
	assert.NotContains(t, got, "мастика---т65")

	assert.Equal(t, []string{"праймер-", "праймер"}, Variants("праймер-"))
}

func TestExpand(t *testing.T) {
	got := Expand("Мастика для кровли")

	assert.Equal(t, "мастика для кровли мастики мастикой герметик кровля кровельный крыша", got)
	assert.Equal(t, "цемент", Expand("Цемент"))
	assert.Empty(t, Expand("  "))
}
