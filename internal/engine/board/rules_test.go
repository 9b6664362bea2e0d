package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridOf(t *testing.T, lines ...string) Grid {
	t.Helper()
	g, err := GridFromRows(len(lines), len(lines[0]), lines)
	require.NoError(t, err)
	return g
}

func TestMarkMatchesDiagonalRun(t *testing.T) {
	g := gridOf(t,
		"W...",
		".W..",
		"..W.",
		"...W",
	)

	marks := MarkMatches(g, DefaultRules())
	assert.Equal(t, 4, marks.Count())
	assert.True(t, marks.Marked(0, 0))
	assert.True(t, marks.Marked(3, 3))
}

func TestMarkMatchesAntiDiagonalRun(t *testing.T) {
	g := gridOf(t,
		"..E",
		".E.",
		"E..",
	)

	assert.Equal(t, 3, MarkMatches(g, DefaultRules()).Count())
}

func TestMarkMatchesIgnoresShortRuns(t *testing.T) {
	g := gridOf(t,
		"TTOO",
		"OOTT",
	)

	assert.Equal(t, 0, MarkMatches(g, DefaultRules()).Count())
}

func TestMarkMatchesIgnoresStones(t *testing.T) {
	g := gridOf(t, "###")

	assert.Equal(t, 0, MarkMatches(g, DefaultRules()).Count())
}

func TestMarkMatchesRespectsMinRun(t *testing.T) {
	g := gridOf(t, "SSS.")
	rules := DefaultRules()
	rules.MinRun = 4

	assert.Equal(t, 0, MarkMatches(g, rules).Count())
}

func TestMarkMatchesWordOnly(t *testing.T) {
	g := gridOf(t, "ROT")
	rules := Rules{Directions: []Direction{Horizontal}, Words: []string{"TOR"}}

	assert.Equal(t, 3, MarkMatches(g, rules).Count())
}

func TestCollapseKeepsColumnOrder(t *testing.T) {
	g := gridOf(t,
		"T.",
		".O",
		"W.",
		"..",
	)

	out := Collapse(g)
	assert.Equal(t, "..\n..\nT.\nWO\n", out.String())
}

func TestPushRowBottomReportsOverflow(t *testing.T) {
	g := gridOf(t, "T.", "..")

	out, overflow := PushRowBottom(g, []Block{Stone(), Stone()})
	assert.True(t, overflow)
	assert.Equal(t, "..\n##\n", out.String())
}

func TestRemoveRowBottom(t *testing.T) {
	g := gridOf(t, "T.", "OW")

	out, removed := RemoveRowBottom(g)
	assert.Len(t, removed, 2)
	assert.Equal(t, "..\nT.\n", out.String())
}
