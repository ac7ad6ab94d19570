package rules

import (
	"github.com/seednode/jarlsd/internal/hexgeom"
	"github.com/seednode/jarlsd/internal/model"
)

// ApplyMove validates and executes a move/attack command, returning the
// resulting state and the events it produced. It never mutates its input;
// state.Clone() backs the returned state. Spec §4.B.2–§4.B.6.
func ApplyMove(state *model.GameState, playerID, pieceID string, destination hexgeom.Hex) (*model.GameState, []model.GameEvent, error) {
	result, err := ValidateMove(state, playerID, pieceID, destination)
	if err != nil {
		return nil, nil, err
	}

	next := state.Clone()
	piece, _ := next.PieceByID(pieceID)
	radius := next.Config.BoardRadius

	finalDest := destination
	if result.AdjustedDestination != nil {
		finalDest = *result.AdjustedDestination
	}

	var events []model.GameEvent

	_, enemyPresent := next.PieceAt(finalDest)

	if !enemyPresent {
		movePiece(next, pieceID, finalDest)
		events = append(events, model.GameEvent{
			Type:        model.EventMove,
			PieceID:     pieceID,
			From:        piece.Position,
			To:          finalDest,
			HasMomentum: result.HasMomentum,
		})
	} else {
		moveEvt, chainEvents := executeAttack(next, piece, finalDest, result.Direction, result.HasMomentum, radius)
		events = append(events, moveEvt)
		events = append(events, chainEvents...)
	}

	events = append(events, postMoveProcessing(next, playerID, pieceID)...)

	return next, events, nil
}

// executeAttack mutates next to reflect a winning attack: the attacker
// moves into the defender's original hex, and the push chain (resolved
// via resolveChain) shifts or eliminates every piece behind it. The
// attacker's MOVE event is returned first, then the chain's PUSH/
// ELIMINATED events with increasing depth, matching the ordering in the
// spec's worked examples (§8 scenario 2).
func executeAttack(next *model.GameState, attacker model.Piece, target hexgeom.Hex, dir hexgeom.Dir, momentum bool, radius int) (model.GameEvent, []model.GameEvent) {
	chain := resolveChain(next, target, dir, radius)

	moveEvt := model.GameEvent{
		Type:        model.EventMove,
		PieceID:     attacker.ID,
		From:        attacker.Position,
		To:          target,
		HasMomentum: momentum,
	}

	var chainEvents []model.GameEvent

	n := len(chain.Hexes)
	switch chain.Terminal {
	case chainEliminated:
		// Pieces[0..n-2] each shift into Hexes[1..n-1]; Pieces[n-1] is
		// eliminated at Hexes[n-1].
		for i := 0; i < n-1; i++ {
			movePiece(next, chain.Pieces[i].ID, chain.Hexes[i+1])
			chainEvents = append(chainEvents, model.GameEvent{
				Type:    model.EventPush,
				PieceID: chain.Pieces[i].ID,
				From:    chain.Hexes[i],
				To:      chain.Hexes[i+1],
				Depth:   i,
			})
		}
		last := chain.Pieces[n-1]
		cause := model.CauseEdge
		if next.IsHole(hexgeom.Neighbor(chain.Hexes[n-1], dir)) {
			cause = model.CauseHole
		}
		removePiece(next, last.ID)
		chainEvents = append(chainEvents, model.GameEvent{
			Type:     model.EventEliminated,
			PieceID:  last.ID,
			Position: chain.Hexes[n-1],
			Cause:    cause,
		})

	case chainMovedIntoEmpty:
		// Hexes has n entries including the final empty hex; Pieces has
		// n-1 entries, one per occupied hex.
		for i := 0; i < n-1; i++ {
			movePiece(next, chain.Pieces[i].ID, chain.Hexes[i+1])
			chainEvents = append(chainEvents, model.GameEvent{
				Type:    model.EventPush,
				PieceID: chain.Pieces[i].ID,
				From:    chain.Hexes[i],
				To:      chain.Hexes[i+1],
				Depth:   i,
			})
		}
	}

	movePiece(next, attacker.ID, target)

	return moveEvt, chainEvents
}

func movePiece(state *model.GameState, pieceID string, to hexgeom.Hex) {
	for i := range state.Pieces {
		if state.Pieces[i].ID == pieceID {
			state.Pieces[i].Position = to
			return
		}
	}
}

func removePiece(state *model.GameState, pieceID string) {
	out := state.Pieces[:0]
	for _, p := range state.Pieces {
		if p.ID != pieceID {
			out = append(out, p)
		}
	}
	state.Pieces = out
}

// postMoveProcessing implements §4.B.6: victory detection, turn/round
// advancement, and starvation evaluation at round boundaries.
func postMoveProcessing(state *model.GameState, movingPlayerID, movedPieceID string) []model.GameEvent {
	var events []model.GameEvent

	if piece, ok := state.PieceByID(movedPieceID); ok && piece.Type == model.PieceJarl && piece.Position == hexgeom.Throne {
		state.Phase = model.PhaseEnded
		state.WinnerID = movingPlayerID
		state.WinCondition = model.WinThrone
		events = append(events, model.GameEvent{
			Type:         model.EventGameEnded,
			WinnerID:     movingPlayerID,
			WinCondition: model.WinThrone,
		})
		return events
	}

	anyEliminatedThisTurn := false

	for i := range state.Players {
		p := &state.Players[i]
		if p.IsEliminated {
			continue
		}
		if _, hasJarl := state.JarlOf(p.ID); !hasJarl {
			p.IsEliminated = true
			anyEliminatedThisTurn = true
			for _, w := range state.WarriorsOf(p.ID) {
				removePiece(state, w.ID)
			}
		}
	}

	remaining := 0
	var lastRemainingID string
	for _, p := range state.Players {
		if !p.IsEliminated {
			remaining++
			lastRemainingID = p.ID
		}
	}
	if remaining <= 1 && len(state.Players) > 1 {
		state.Phase = model.PhaseEnded
		state.WinnerID = lastRemainingID
		state.WinCondition = model.WinLastStanding
		events = append(events, model.GameEvent{
			Type:         model.EventGameEnded,
			WinnerID:     lastRemainingID,
			WinCondition: model.WinLastStanding,
		})
		return events
	}

	state.TurnNumber++

	roundWrapped := advanceCurrentPlayer(state)

	if roundWrapped {
		state.RoundNumber++
		if anyEliminatedThisTurn {
			state.RoundsSinceElimination = 0
		} else {
			state.RoundsSinceElimination++
		}
		evaluateStarvationTrigger(state)
	} else if anyEliminatedThisTurn {
		state.RoundsSinceElimination = 0
	}

	return events
}

// advanceCurrentPlayer moves CurrentPlayerID to the next non-eliminated
// player in seat order, wrapping. It returns true when the advance reaches
// or passes the seat that started the current round (i.e., the round has
// wrapped), and moves FirstPlayerIndex to the new round's starter: the
// first non-eliminated seat from there.
func advanceCurrentPlayer(state *model.GameState) bool {
	n := len(state.Players)
	if n == 0 {
		return false
	}

	curIdx := -1
	for i, p := range state.Players {
		if p.ID == state.CurrentPlayerID {
			curIdx = i
			break
		}
	}
	if curIdx == -1 {
		curIdx = 0
	}

	wrapped := false
	for step := 1; step <= n; step++ {
		idx := (curIdx + step) % n
		if idx == state.FirstPlayerIndex {
			wrapped = true
		}
		if state.Players[idx].IsEliminated {
			continue
		}
		state.CurrentPlayerID = state.Players[idx].ID
		if wrapped {
			state.FirstPlayerIndex = idx
		}
		return wrapped
	}
	return false
}

// ShouldTriggerStarvation reports whether roundsSinceElimination triggers
// a starvation round: the first trigger at exactly 10, then every 5
// rounds after. Spec §4.B.7, tested as §8 property 10.
func ShouldTriggerStarvation(roundsSinceElimination int) bool {
	r := roundsSinceElimination
	if r == 10 {
		return true
	}
	return r > 10 && (r-10)%5 == 0
}

func evaluateStarvationTrigger(state *model.GameState) {
	if !ShouldTriggerStarvation(state.RoundsSinceElimination) {
		return
	}

	var candidates []model.StarvationCandidate
	for _, p := range state.Players {
		if p.IsEliminated {
			continue
		}
		warriors := state.WarriorsOf(p.ID)
		if len(warriors) == 0 {
			continue
		}
		maxDist := -1
		for _, w := range warriors {
			d := hexgeom.HexDistance(w.Position, hexgeom.Throne)
			if d > maxDist {
				maxDist = d
			}
		}
		var ids []string
		for _, w := range warriors {
			if hexgeom.HexDistance(w.Position, hexgeom.Throne) == maxDist {
				ids = append(ids, w.ID)
			}
		}
		candidates = append(candidates, model.StarvationCandidate{PlayerID: p.ID, PieceIDs: ids})
	}

	if len(candidates) == 0 {
		return
	}

	state.Phase = model.PhaseStarvation
	state.StarvationCandidates = candidates
	state.PendingStarvationChoices = map[string]string{}
}

// ApplyStarvationChoice records one player's sacrifice choice (§4.B.7
// step 3) and, once every required player has chosen, resolves the round
// (step 4): removes the chosen warriors, emits one ELIMINATED event per
// removal, resets RoundsSinceElimination, and returns to playing.
func ApplyStarvationChoice(state *model.GameState, playerID, pieceID string) (*model.GameState, []model.GameEvent, error) {
	if state.Phase != model.PhaseStarvation {
		return nil, nil, newErr(ErrStarvationNotActive)
	}

	var candidate *model.StarvationCandidate
	for i := range state.StarvationCandidates {
		if state.StarvationCandidates[i].PlayerID == playerID {
			candidate = &state.StarvationCandidates[i]
			break
		}
	}
	if candidate == nil {
		return nil, nil, newErr(ErrNotAStarvationCandidate)
	}

	valid := false
	for _, id := range candidate.PieceIDs {
		if id == pieceID {
			valid = true
			break
		}
	}
	if !valid {
		return nil, nil, newErr(ErrNotAStarvationCandidate)
	}

	if _, already := state.PendingStarvationChoices[playerID]; already {
		return nil, nil, newErr(ErrAlreadyChosen)
	}

	next := state.Clone()
	next.PendingStarvationChoices[playerID] = pieceID

	if len(next.PendingStarvationChoices) < len(next.StarvationCandidates) {
		return next, nil, nil
	}

	var events []model.GameEvent
	for _, c := range next.StarvationCandidates {
		chosen := next.PendingStarvationChoices[c.PlayerID]
		piece, ok := next.PieceByID(chosen)
		if !ok {
			continue
		}
		removePiece(next, chosen)
		events = append(events, model.GameEvent{
			Type:     model.EventEliminated,
			PieceID:  chosen,
			Position: piece.Position,
			Cause:    model.CauseStarvation,
		})
	}

	next.RoundsSinceElimination = 0
	next.Phase = model.PhasePlaying
	next.StarvationCandidates = nil
	next.PendingStarvationChoices = map[string]string{}

	remaining := 0
	var lastRemainingID string
	for _, p := range next.Players {
		if !p.IsEliminated {
			remaining++
			lastRemainingID = p.ID
		}
	}
	if remaining <= 1 && len(next.Players) > 1 {
		next.Phase = model.PhaseEnded
		next.WinnerID = lastRemainingID
		next.WinCondition = model.WinLastStanding
		events = append(events, model.GameEvent{
			Type:         model.EventGameEnded,
			WinnerID:     lastRemainingID,
			WinCondition: model.WinLastStanding,
		})
	}

	return next, events, nil
}
