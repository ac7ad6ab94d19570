// Package ai implements the pluggable AI adapter of spec §4.I: given a
// game state and the AI player to move, produce a MoveCommand through the
// same rules-engine path a human's client would use. The adapter is a
// capability, not a fixed algorithm — today only a heuristic search is
// wired in, but adapters for an external LLM call are the same interface.
package ai

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/seednode/jarlsd/internal/hexgeom"
	"github.com/seednode/jarlsd/internal/model"
	"github.com/seednode/jarlsd/internal/rules"
)

// ErrNoLegalMove is returned when an AI player has no legal move for any
// of its pieces — callers should treat this the same as a starvation
// auto-choice: the turn still has to go somewhere, or the game is stuck.
var ErrNoLegalMove = errors.New("ai: no legal move available")

// Command is the move an adapter chooses.
type Command struct {
	PieceID     string
	Destination hexgeom.Hex
}

// Adapter generates a move for an AI-controlled player.
type Adapter interface {
	GenerateMove(ctx context.Context, state *model.GameState, playerID string) (Command, error)
}

// NewAdapter builds the adapter named by an AIConfig. Only "heuristic" is
// implemented; any other type also resolves to it, since spec §9 leaves
// richer adapters (e.g. an external LLM) as a future capability rather
// than a required one.
func NewAdapter(cfg model.AIConfig, limiter *rate.Limiter) Adapter {
	return &heuristicAdapter{difficulty: cfg.Difficulty, limiter: limiter}
}

// heuristicAdapter picks the highest-value legal move across every piece
// the player controls: an attack that eliminates a piece outright beats
// one that merely pushes, which beats a plain move toward the Throne.
// When built with a golang.org/x/time/rate limiter, the adapter waits on
// it before each move; a nil limiter (which is what the manager passes)
// means no throttling.
type heuristicAdapter struct {
	difficulty string
	limiter    *rate.Limiter
}

func (a *heuristicAdapter) GenerateMove(ctx context.Context, state *model.GameState, playerID string) (Command, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return Command{}, err
		}
	}

	var pieceIDs []string
	for _, p := range state.Pieces {
		if p.PlayerID == playerID {
			pieceIDs = append(pieceIDs, p.ID)
		}
	}

	var best Command
	bestScore := -1
	found := false

	for _, pieceID := range pieceIDs {
		moves, err := rules.GetValidMoves(state, pieceID)
		if err != nil {
			continue
		}
		for _, m := range moves {
			score := scoreMove(state, m)
			if !found || score > bestScore {
				best = Command{PieceID: pieceID, Destination: m.Destination}
				bestScore = score
				found = true
			}
		}
	}

	if !found {
		return Command{}, ErrNoLegalMove
	}
	return best, nil
}

func scoreMove(state *model.GameState, m rules.ValidMove) int {
	if m.IsAttack && m.Combat != nil {
		// An attack that eliminates (chain can't absorb the push into an
		// empty hex because there's no room) scores higher than one that
		// merely shoves the defender aside.
		if attacker, ok := state.PieceByID(m.PieceID); ok {
			if _, events, err := rules.ApplyMove(state, attacker.PlayerID, m.PieceID, m.Destination); err == nil {
				for _, e := range events {
					if e.Type == model.EventEliminated {
						return 100
					}
				}
			}
		}
		return 80
	}

	piece, ok := state.PieceByID(m.PieceID)
	if !ok {
		return 0
	}
	before := hexgeom.HexDistance(piece.Position, hexgeom.Throne)
	after := hexgeom.HexDistance(m.Destination, hexgeom.Throne)
	if piece.Type == model.PieceJarl {
		// Jarls want to close on the Throne.
		return 50 + (before - after)
	}
	return 10 + (before - after)
}

// ChooseStarvationSacrifice deterministically picks one of a player's
// starvation candidates when a human misses the round's choice timeout,
// per §5's "auto-selects ... deterministically (e.g., lowest-id)".
func ChooseStarvationSacrifice(pieceIDs []string) string {
	if len(pieceIDs) == 0 {
		return ""
	}
	lowest := pieceIDs[0]
	for _, id := range pieceIDs[1:] {
		if id < lowest {
			lowest = id
		}
	}
	return lowest
}
