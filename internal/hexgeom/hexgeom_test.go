package hexgeom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAxialCubeRoundTrip(t *testing.T) {
	h := Hex{Q: 2, R: -3}
	c := AxialToCube(h)
	require.Equal(t, -2-(-3), c.S)
	require.Equal(t, h, CubeToAxial(c))
}

func TestHexDistance(t *testing.T) {
	cases := []struct {
		a, b Hex
		want int
	}{
		{Hex{0, 0}, Hex{0, 0}, 0},
		{Hex{0, 0}, Hex{1, 0}, 1},
		{Hex{0, 0}, Hex{2, -1}, 2},
		{Hex{1, 0}, Hex{-1, 0}, 2},
		{Hex{3, -1}, Hex{-2, 1}, 5},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HexDistance(c.a, c.b), "dist(%v,%v)", c.a, c.b)
	}
}

func TestNeighborAndOpposite(t *testing.T) {
	origin := Hex{0, 0}
	for d := Dir(0); d < 6; d++ {
		n := Neighbor(origin, d)
		require.Equal(t, 1, HexDistance(origin, n))
		back := Neighbor(n, OppositeDir(d))
		require.Equal(t, origin, back)
	}
}

func TestIsOnBoardAndEdge(t *testing.T) {
	require.True(t, IsOnBoard(Hex{0, 0}, 3))
	require.True(t, IsOnBoard(Hex{3, 0}, 3))
	require.False(t, IsOnBoard(Hex{4, 0}, 3))
	require.True(t, IsOnEdge(Hex{3, 0}, 3))
	require.False(t, IsOnEdge(Hex{2, 0}, 3))
	require.False(t, IsOnEdge(Hex{0, 0}, 3))
}

func TestLineDirectionAndHexLine(t *testing.T) {
	dir, ok := LineDirection(Hex{0, 0}, Hex{2, 0})
	require.True(t, ok)
	require.Equal(t, DirEast, dir)

	line := HexLine(Hex{0, 0}, Hex{2, 0})
	require.Equal(t, []Hex{{0, 0}, {1, 0}, {2, 0}}, line)

	_, ok = LineDirection(Hex{0, 0}, Hex{1, 1})
	require.False(t, ok)
}

func TestGenerateAllBoardHexes(t *testing.T) {
	radius := 3
	hexes := GenerateAllBoardHexes(radius)
	// |board hexes of radius R| = 3R^2 + 3R + 1
	require.Len(t, hexes, 3*radius*radius+3*radius+1)
	for _, h := range hexes {
		require.True(t, IsOnBoard(h, radius))
	}
}
