package rules

import (
	"github.com/seednode/jarlsd/internal/hexgeom"
	"github.com/seednode/jarlsd/internal/model"
)

// ValidMove is one legal destination for a piece, per §4.B.1.
type ValidMove struct {
	PieceID           string         `json:"pieceId"`
	Destination       hexgeom.Hex    `json:"destination"`
	HasMomentum       bool           `json:"hasMomentum"`
	IsAttack          bool           `json:"isAttack"`
	AdjustedForThrone bool           `json:"adjustedForThrone,omitempty"`
	Combat            *CombatPreview `json:"combat,omitempty"`
}

// destCandidate is the result of resolving one (direction, distance)
// candidate against board geometry, before any combat is considered.
type destCandidate struct {
	dest        hexgeom.Hex
	intermediate []hexgeom.Hex
	clamped     bool
}

// resolveCandidate computes the destination for moving piece.Position
// distance hexes in direction dir, applying the jarl-crosses-Throne clamp
// of §4.B.1 step 6. Every direction/distance pair yields a geometric
// destination; callers check it against the board themselves.
func resolveCandidate(pos hexgeom.Hex, dir hexgeom.Dir, distance int, pieceType model.PieceType) destCandidate {
	if distance == 1 {
		return destCandidate{dest: hexgeom.Neighbor(pos, dir)}
	}

	step1 := hexgeom.Neighbor(pos, dir)
	if pieceType == model.PieceJarl && step1 == hexgeom.Throne {
		return destCandidate{dest: hexgeom.Throne, clamped: true}
	}

	step2 := hexgeom.Neighbor(step1, dir)
	return destCandidate{dest: step2, intermediate: []hexgeom.Hex{step1}}
}

// GetValidMoves enumerates every legal move for pieceId, per §4.B.1. It is
// a pure function of state and pieceId (§8 property 6): it returns an
// empty slice (never an error) when it isn't that piece owner's turn, so
// that the HTTP valid-moves endpoint can be queried at any time without
// special-casing.
func GetValidMoves(state *model.GameState, pieceID string) ([]ValidMove, error) {
	piece, ok := state.PieceByID(pieceID)
	if !ok {
		return nil, newErr(ErrPieceNotFound)
	}

	if state.Phase != model.PhasePlaying || state.CurrentPlayerID != piece.PlayerID {
		return []ValidMove{}, nil
	}

	radius := state.Config.BoardRadius
	var out []ValidMove

	for dir := hexgeom.Dir(0); dir < 6; dir++ {
		distances := []int{1}
		if piece.Type == model.PieceWarrior {
			distances = []int{1, 2}
		} else if hasDraftFormation(state, piece.PlayerID, piece.Position, dir, radius) {
			distances = []int{1, 2}
		}

		for _, dist := range distances {
			cand := resolveCandidate(piece.Position, dir, dist, piece.Type)

			if !hexgeom.IsOnBoard(cand.dest, radius) {
				continue
			}
			if state.IsHole(cand.dest) {
				continue
			}
			if piece.Type == model.PieceWarrior && cand.dest == hexgeom.Throne {
				continue
			}
			if blocked := pathBlocked(state, cand.intermediate); blocked {
				continue
			}

			occupant, occupied := state.PieceAt(cand.dest)
			if occupied && occupant.PlayerID == piece.PlayerID {
				continue
			}

			momentum := dist == 2

			if !occupied {
				out = append(out, ValidMove{
					PieceID:           pieceID,
					Destination:       cand.dest,
					HasMomentum:       momentum,
					AdjustedForThrone: cand.clamped,
				})
				continue
			}

			// Enemy-occupied: only a winning, unblocked push is legal.
			dirOfAttack, ok := hexgeom.LineDirection(piece.Position, cand.dest)
			if !ok {
				// Throne-clamped attacks still travel along dir.
				dirOfAttack = dir
			}
			preview, _ := combatOutcome(state, piece, piece.Position, cand.dest, dirOfAttack, momentum, radius)
			if !preview.Pushes {
				continue
			}

			out = append(out, ValidMove{
				PieceID:           pieceID,
				Destination:       cand.dest,
				HasMomentum:       momentum,
				IsAttack:          true,
				AdjustedForThrone: cand.clamped,
				Combat:            &preview,
			})
		}
	}

	return out, nil
}

func pathBlocked(state *model.GameState, intermediate []hexgeom.Hex) bool {
	for _, h := range intermediate {
		if state.IsHole(h) {
			return true
		}
		if _, occ := state.PieceAt(h); occ {
			return true
		}
	}
	return false
}

// ValidationResult is what a successful ValidateMove call returns.
type ValidationResult struct {
	HasMomentum        bool
	AdjustedDestination *hexgeom.Hex
	Direction           hexgeom.Dir
}

// ValidateMove checks a (pieceID, destination) command from playerID
// against the rules in §4.B.2, returning the specific ErrorKind on
// failure.
func ValidateMove(state *model.GameState, playerID, pieceID string, destination hexgeom.Hex) (ValidationResult, error) {
	if state.Phase != model.PhasePlaying {
		return ValidationResult{}, newErr(ErrGameNotPlaying)
	}
	if state.CurrentPlayerID != playerID {
		return ValidationResult{}, newErr(ErrNotYourTurn)
	}

	piece, ok := state.PieceByID(pieceID)
	if !ok {
		return ValidationResult{}, newErr(ErrPieceNotFound)
	}
	if piece.PlayerID != playerID {
		return ValidationResult{}, newErr(ErrNotYourPiece)
	}

	radius := state.Config.BoardRadius

	// A jarl's throne-clamped two-hex move lands exactly on the Throne,
	// one hex short of the geometric two-hex target, so a client
	// submitting the clamped destination directly must also validate.
	// Try both the literal requested destination and, for jarls, whether
	// it's reachable as a clamped two-hex draft move.
	dir, collinear := hexgeom.LineDirection(piece.Position, destination)
	distance := hexgeom.HexDistance(piece.Position, destination)

	if !collinear {
		if piece.Type == model.PieceJarl && destination == hexgeom.Throne {
			// Might be a throne-clamped two-hex move whose real
			// direction points past the Throne; search directions.
			found := false
			for d := hexgeom.Dir(0); d < 6; d++ {
				step1 := hexgeom.Neighbor(piece.Position, d)
				if step1 == hexgeom.Throne && hasDraftFormation(state, playerID, piece.Position, d, radius) {
					dir, distance, found = d, 2, true
					break
				}
			}
			if !found {
				return ValidationResult{}, newErr(ErrMoveNotStraightLine)
			}
		} else {
			return ValidationResult{}, newErr(ErrMoveNotStraightLine)
		}
	}

	if piece.Type == model.PieceWarrior {
		if distance != 1 && distance != 2 {
			return ValidationResult{}, newErr(ErrInvalidDistanceWarrior)
		}
	} else {
		if distance != 1 && distance != 2 {
			return ValidationResult{}, newErr(ErrInvalidDistanceJarl)
		}
		if distance == 2 && !hasDraftFormation(state, playerID, piece.Position, dir, radius) {
			return ValidationResult{}, newErr(ErrJarlNeedsDraft)
		}
	}

	cand := resolveCandidate(piece.Position, dir, distance, piece.Type)
	if cand.dest != destination && !cand.clamped {
		// Client asked for a destination inconsistent with the
		// geometry actually produced. A clamped draft move is exempt:
		// dir/distance were already derived from the client's own
		// destination, so a clamp here means the client submitted the
		// raw far-side hex the unclamped 2-hex move would have reached,
		// which resolves to the clamped Throne landing. (A jarl beside
		// the Throne that submits the Throne itself makes an ordinary
		// one-hex move, without momentum.)
		return ValidationResult{}, newErr(ErrMoveNotStraightLine)
	}

	if !hexgeom.IsOnBoard(cand.dest, radius) {
		return ValidationResult{}, newErr(ErrDestinationOffBoard)
	}
	if state.IsHole(cand.dest) {
		return ValidationResult{}, newErr(ErrDestinationIsHole)
	}
	if piece.Type == model.PieceWarrior && cand.dest == hexgeom.Throne {
		return ValidationResult{}, newErr(ErrWarriorCannotEnterThrone)
	}
	if pathBlocked(state, cand.intermediate) {
		return ValidationResult{}, newErr(ErrPathBlocked)
	}

	occupant, occupied := state.PieceAt(cand.dest)
	if occupied {
		if occupant.PlayerID == playerID {
			return ValidationResult{}, newErr(ErrDestinationOccupied)
		}
		momentum := distance == 2
		preview, _ := combatOutcome(state, piece, piece.Position, cand.dest, dir, momentum, radius)
		if !preview.Pushes {
			return ValidationResult{}, newErr(ErrAttackBlocked)
		}
	}

	result := ValidationResult{
		HasMomentum: distance == 2,
		Direction:   dir,
	}
	if cand.clamped {
		adj := cand.dest
		result.AdjustedDestination = &adj
	}
	return result, nil
}
