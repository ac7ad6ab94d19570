package rules

import (
	"math/rand"
	"sort"
	"strconv"

	"github.com/seednode/jarlsd/internal/hexgeom"
	"github.com/seednode/jarlsd/internal/model"
)

// boardCorners returns the six corner hexes of a board of the given
// radius, in a fixed rotational order, used as symmetric anchor points
// for initial jarl placement.
func boardCorners(radius int) [6]hexgeom.Hex {
	return [6]hexgeom.Hex{
		{Q: radius, R: -radius},
		{Q: radius, R: 0},
		{Q: 0, R: radius},
		{Q: -radius, R: radius},
		{Q: -radius, R: 0},
		{Q: 0, R: -radius},
	}
}

// jarlStartPositions picks n evenly spaced corners for n players, so that
// two players sit opposite each other and larger counts stay symmetric
// about the Throne.
func jarlStartPositions(radius, n int) []hexgeom.Hex {
	corners := boardCorners(radius)
	out := make([]hexgeom.Hex, n)
	for i := 0; i < n; i++ {
		idx := (i * 6) / n % 6
		out[i] = corners[idx]
	}
	return out
}

// SetupBoard builds the initial piece layout and hole set for a game
// leaving the lobby, per spec §3 "Lifecycle" and §3 "Hole" count rules.
// Hole placement is the one seeded-random step the rules engine performs.
func SetupBoard(cfg model.GameConfig, players []model.Player, seed int64) ([]model.Piece, []model.Hole) {
	radius := cfg.BoardRadius
	jarlPositions := jarlStartPositions(radius, len(players))

	occupied := make(map[hexgeom.Hex]bool)
	var pieces []model.Piece

	for i, p := range players {
		jarlPos := jarlPositions[i]
		pieces = append(pieces, model.Piece{
			ID:       p.ID + ":jarl",
			Type:     model.PieceJarl,
			PlayerID: p.ID,
			Position: jarlPos,
		})
		occupied[jarlPos] = true
	}

	for i, p := range players {
		jarlPos := jarlPositions[i]
		warriorPositions := nearestFreeHexes(jarlPos, radius, occupied, cfg.WarriorCount)
		for wi, pos := range warriorPositions {
			occupied[pos] = true
			pieces = append(pieces, model.Piece{
				ID:       p.ID + ":warrior:" + strconv.Itoa(wi),
				Type:     model.PieceWarrior,
				PlayerID: p.ID,
				Position: pos,
			})
		}
	}

	holes := generateHoles(cfg, occupied, seed)

	return pieces, holes
}

// nearestFreeHexes performs a breadth-first search outward from center,
// returning up to n on-board hexes not already in occupied and not the
// Throne, ordered by increasing distance (ties broken deterministically).
func nearestFreeHexes(center hexgeom.Hex, radius int, occupied map[hexgeom.Hex]bool, n int) []hexgeom.Hex {
	var out []hexgeom.Hex
	visited := map[hexgeom.Hex]bool{center: true}
	frontier := []hexgeom.Hex{center}

	for len(out) < n && len(frontier) > 0 {
		var next []hexgeom.Hex
		var ring []hexgeom.Hex
		for _, h := range frontier {
			for d := hexgeom.Dir(0); d < 6; d++ {
				nb := hexgeom.Neighbor(h, d)
				if visited[nb] {
					continue
				}
				visited[nb] = true
				if !hexgeom.IsOnBoard(nb, radius) {
					continue
				}
				ring = append(ring, nb)
			}
		}
		sort.Slice(ring, func(i, j int) bool {
			if ring[i].Q != ring[j].Q {
				return ring[i].Q < ring[j].Q
			}
			return ring[i].R < ring[j].R
		})
		for _, h := range ring {
			if h == hexgeom.Throne || occupied[h] {
				continue
			}
			out = append(out, h)
			if len(out) == n {
				break
			}
		}
		next = append(next, ring...)
		frontier = next
	}

	return out
}

// generateHoles picks cfg.Terrain.HoleCount() random on-board hexes,
// excluding the Throne, edge hexes, hexes within one step of an edge, and
// any already-occupied starting position, using a seeded PRNG so setup is
// reproducible in tests.
func generateHoles(cfg model.GameConfig, occupied map[hexgeom.Hex]bool, seed int64) []model.Hole {
	radius := cfg.BoardRadius
	target := cfg.Terrain.HoleCount()

	var candidates []hexgeom.Hex
	for _, h := range hexgeom.GenerateAllBoardHexes(radius) {
		if h == hexgeom.Throne {
			continue
		}
		if occupied[h] {
			continue
		}
		c := hexgeom.AxialToCube(h)
		m := maxAbs3(c.Q, c.R, c.S)
		if m >= radius-1 { // edge hex, or within 1 of an edge
			continue
		}
		candidates = append(candidates, h)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Q != candidates[j].Q {
			return candidates[i].Q < candidates[j].Q
		}
		return candidates[i].R < candidates[j].R
	})

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	if target > len(candidates) {
		target = len(candidates)
	}

	holes := make([]model.Hole, 0, target)
	for i := 0; i < target; i++ {
		holes = append(holes, model.Hole{Position: candidates[i]})
	}
	return holes
}

func maxAbs3(a, b, c int) int {
	abs := func(n int) int {
		if n < 0 {
			return -n
		}
		return n
	}
	m := abs(a)
	if abs(b) > m {
		m = abs(b)
	}
	if abs(c) > m {
		m = abs(c)
	}
	return m
}
