package contentfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterAllowsOrdinaryText(t *testing.T) {
	result := Filter("Today I wrote a blog post about the weather and my budget.")
	assert.True(t, result.Allowed)
	assert.Empty(t, result.Category)
}

// §8 scenario 6: a denylisted slur blocks the outbound text.
func TestFilterBlocksDenylistedSubstring(t *testing.T) {
	result := Filter("I want to killallthem right now")
	assert.False(t, result.Allowed)
	assert.Equal(t, CategoryHate, result.Category)
}

func TestFilterCatchesLeetVariants(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Category
	}{
		{"leet substitution of the hate phrase", "k1ll4ll7h3m", CategoryHate},
		{"mixed case hate phrase", "KillAllThem now", CategoryHate},
		{"csam phrase", "sharing CP LINKS here", CategoryCSAM},
		{"explicit porn leet", "xxx3xpl1c1t content", CategoryExplicitPorn},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Filter(tc.text)
			assert.False(t, result.Allowed)
			assert.Equal(t, tc.want, result.Category)
		})
	}
}

func TestFilterIsPureNoPanicOnEmptyInput(t *testing.T) {
	result := Filter("")
	assert.True(t, result.Allowed)
}
