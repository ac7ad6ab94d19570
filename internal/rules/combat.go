package rules

import (
	"github.com/seednode/jarlsd/internal/hexgeom"
	"github.com/seednode/jarlsd/internal/model"
)

// CombatPreview summarizes the simulated outcome of an attack, attached to
// a ValidMove so clients can preview combat math before committing.
type CombatPreview struct {
	AttackStrength  int  `json:"attackStrength"`
	DefenseStrength int  `json:"defenseStrength"`
	Pushes          bool `json:"pushes"`
}

// hasDraftFormation implements §4.B.1's draft-formation check: walking
// opposite dir from the jarl's position P, counting friendly warriors
// before the walk leaves the board or hits a non-friendly-warrior piece.
// Gaps (empty hexes) between warriors are allowed.
func hasDraftFormation(state *model.GameState, playerID string, p hexgeom.Hex, dir hexgeom.Dir, radius int) bool {
	count := 0
	cur := p
	back := hexgeom.OppositeDir(dir)
	for {
		cur = hexgeom.Neighbor(cur, back)
		if !hexgeom.IsOnBoard(cur, radius) {
			break
		}
		piece, ok := state.PieceAt(cur)
		if !ok {
			continue // gap: keep walking
		}
		if piece.PlayerID != playerID || piece.Type != model.PieceWarrior {
			break
		}
		count++
	}
	return count >= 2
}

// inlineSupport sums the strengths of the contiguous run of friendly
// pieces directly behind the attacker (opposite the attack direction),
// stopping at the first gap or non-friendly piece. Spec §4.B.3.1.
func inlineSupport(state *model.GameState, attackerPlayerID string, from hexgeom.Hex, dir hexgeom.Dir, radius int) int {
	total := 0
	cur := from
	back := hexgeom.OppositeDir(dir)
	for {
		cur = hexgeom.Neighbor(cur, back)
		if !hexgeom.IsOnBoard(cur, radius) {
			break
		}
		piece, ok := state.PieceAt(cur)
		if !ok {
			break
		}
		if piece.PlayerID != attackerPlayerID {
			break
		}
		total += piece.Strength()
	}
	return total
}

// bracingSupport sums the strengths of the contiguous run of friendly
// pieces directly behind the defender (continuing along the attack
// direction, away from the attacker), stopping at the first gap or
// non-friendly piece. Spec §4.B.3.2. This walks the same hexes the push
// chain itself would walk.
func bracingSupport(state *model.GameState, defenderPlayerID string, at hexgeom.Hex, dir hexgeom.Dir, radius int) int {
	total := 0
	cur := at
	for {
		cur = hexgeom.Neighbor(cur, dir)
		if !hexgeom.IsOnBoard(cur, radius) {
			break
		}
		piece, ok := state.PieceAt(cur)
		if !ok {
			break
		}
		if piece.PlayerID != defenderPlayerID {
			break
		}
		total += piece.Strength()
	}
	return total
}

// chainTerminal names how a push chain resolves.
type chainTerminal int

const (
	chainEliminated chainTerminal = iota
	chainMovedIntoEmpty
	chainBlocked
)

// chainResult is the outcome of simulating a push chain starting with the
// defender at "start", pushed in direction dir.
type chainResult struct {
	Terminal chainTerminal
	// Hexes[0]=start, Hexes[1]=start+dir, ... through the terminal hex.
	Hexes []hexgeom.Hex
	// Pieces[i] is the piece occupying Hexes[i] before resolution, for
	// i in range (len(Hexes) if eliminated, else len(Hexes)-1).
	Pieces []model.Piece
}

// resolveChain walks the push chain iteratively (a worklist, not
// recursion, so depth isn't tied to board size) per §4.B.4. Compression
// anywhere in the chain blocks the entire chain: since every level's move
// depends on the next level vacating, a block at any depth propagates
// back to the original defender, which therefore can't vacate its hex for
// the attacker either. Spec §4.B.5.
func resolveChain(state *model.GameState, start hexgeom.Hex, dir hexgeom.Dir, radius int) chainResult {
	var hexes []hexgeom.Hex
	var pieces []model.Piece

	cur := start
	for {
		piece, ok := state.PieceAt(cur)
		if !ok {
			// Only possible on the very first iteration if called
			// incorrectly; treat as a programmer error by blocking.
			return chainResult{Terminal: chainBlocked, Hexes: hexes, Pieces: pieces}
		}
		hexes = append(hexes, cur)
		pieces = append(pieces, piece)

		next := hexgeom.Neighbor(cur, dir)

		if !hexgeom.IsOnBoard(next, radius) {
			return chainResult{Terminal: chainEliminated, Hexes: hexes, Pieces: pieces}
		}
		if state.IsHole(next) {
			return chainResult{Terminal: chainEliminated, Hexes: hexes, Pieces: pieces}
		}
		if next == hexgeom.Throne {
			// Compression: the Throne blocks any piece (warrior or
			// jarl) being pushed onto it. See DESIGN.md for why jarls
			// are included despite §4.B.5's literal text naming only
			// warriors — this is the chosen resolution of the §9 open
			// question that jarls are never pushed onto the Throne by
			// an enemy chain.
			return chainResult{Terminal: chainBlocked, Hexes: hexes, Pieces: pieces}
		}
		if _, occupied := state.PieceAt(next); !occupied {
			hexes = append(hexes, next)
			return chainResult{Terminal: chainMovedIntoEmpty, Hexes: hexes, Pieces: pieces}
		}

		cur = next
	}
}

// combatOutcome computes attack vs. defense strength and, if the attacker
// wins, the resulting push chain. outcome.Pushes is false for both a
// losing attack and a winning one whose chain is compression-blocked —
// both cases mean the move is illegal and must not appear in
// GetValidMoves (§4.B.1 step 4, §4.B.5).
func combatOutcome(state *model.GameState, attacker model.Piece, from, to hexgeom.Hex, dir hexgeom.Dir, momentum bool, radius int) (preview CombatPreview, chain chainResult) {
	defender, _ := state.PieceAt(to)

	attack := attacker.Strength() + inlineSupport(state, attacker.PlayerID, from, dir, radius)
	if momentum {
		attack++
	}
	defense := defender.Strength() + bracingSupport(state, defender.PlayerID, to, dir, radius)

	preview = CombatPreview{AttackStrength: attack, DefenseStrength: defense}

	if attack <= defense {
		return preview, chainResult{Terminal: chainBlocked}
	}

	chain = resolveChain(state, to, dir, radius)
	preview.Pushes = chain.Terminal != chainBlocked
	return preview, chain
}
