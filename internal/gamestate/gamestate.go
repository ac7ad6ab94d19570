// Package gamestate wraps the pure rules engine in the lobby/playing/
// starvation/paused/ended state machine of spec §4.C. It is the only code
// path allowed to mutate a GameState; everything above it (the manager)
// only ever holds the state this package hands back.
package gamestate

import (
	"errors"
	"time"

	"github.com/seednode/jarlsd/internal/hexgeom"
	"github.com/seednode/jarlsd/internal/model"
	"github.com/seednode/jarlsd/internal/rules"
)

var (
	ErrWrongPhase      = errors.New("game is not in the required phase for this transition")
	ErrNotHost         = errors.New("only the host may perform this action")
	ErrLobbyFull       = errors.New("lobby is full")
	ErrNotEnoughPlayers = errors.New("at least two players must join before starting")
)

// New builds a fresh lobby-phase game from a config, with no players yet.
func New(gameID string, cfg model.GameConfig) *model.GameState {
	return &model.GameState{
		ID:                       gameID,
		Phase:                    model.PhaseLobby,
		Config:                   cfg,
		PendingStarvationChoices: map[string]string{},
		DisconnectedPlayers:      map[string]time.Time{},
		RoundsWithoutWarriors:    map[string]int{},
	}
}

// Join adds a player to a lobby-phase game, returning the updated state.
func Join(state *model.GameState, playerID, name string) (*model.GameState, error) {
	if state.Phase != model.PhaseLobby {
		return nil, ErrWrongPhase
	}
	if len(state.Players) >= state.Config.PlayerCount {
		return nil, ErrLobbyFull
	}

	next := state.Clone()
	next.Players = append(next.Players, model.Player{ID: playerID, Name: name})
	return next, nil
}

// AddAI adds an AI-controlled player to a lobby-phase game.
func AddAI(state *model.GameState, playerID, name string, aiCfg model.AIConfig) (*model.GameState, error) {
	if state.Phase != model.PhaseLobby {
		return nil, ErrWrongPhase
	}
	if len(state.Players) >= state.Config.PlayerCount {
		return nil, ErrLobbyFull
	}

	next := state.Clone()
	cfgCopy := aiCfg
	next.Players = append(next.Players, model.Player{ID: playerID, Name: name, IsAI: true, AIConfig: &cfgCopy})
	return next, nil
}

// hostID is the first player to have joined, by convention.
func hostID(state *model.GameState) string {
	if len(state.Players) == 0 {
		return ""
	}
	return state.Players[0].ID
}

// Start transitions a lobby-phase game to playing, laying out the board.
// callerPlayerID must be the host, and at least two players must have
// joined.
func Start(state *model.GameState, callerPlayerID string, seed int64) (*model.GameState, error) {
	if state.Phase != model.PhaseLobby {
		return nil, ErrWrongPhase
	}
	if hostID(state) != callerPlayerID {
		return nil, ErrNotHost
	}
	if len(state.Players) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	next := state.Clone()
	pieces, holes := rules.SetupBoard(next.Config, next.Players, seed)
	next.Pieces = pieces
	next.Holes = holes
	next.Phase = model.PhasePlaying
	next.CurrentPlayerID = next.Players[0].ID
	next.FirstPlayerIndex = 0
	next.TurnNumber = 1
	next.RoundNumber = 1
	return next, nil
}

// PlayTurn applies a move command via the rules engine, per §4.C's
// `playing --PLAY_TURN-->` transition.
func PlayTurn(state *model.GameState, playerID, pieceID string, destination hexgeom.Hex) (*model.GameState, []model.GameEvent, error) {
	return rules.ApplyMove(state, playerID, pieceID, destination)
}

// StarvationChoice applies one player's sacrifice submission, per §4.C's
// `starvation --STARVATION_CHOICE-->` transition.
func StarvationChoice(state *model.GameState, playerID, pieceID string) (*model.GameState, []model.GameEvent, error) {
	return rules.ApplyStarvationChoice(state, playerID, pieceID)
}

// Disconnect marks playerID as disconnected and, if the game was actively
// being played, moves it to paused. Per §4.C's
// `playing --PLAYER_DISCONNECTED--> paused` transition.
func Disconnect(state *model.GameState, playerID string, at time.Time) *model.GameState {
	next := state.Clone()
	next.DisconnectedPlayers[playerID] = at
	if next.Phase == model.PhasePlaying || next.Phase == model.PhaseStarvation {
		next.Phase = model.PhasePaused
	}
	return next
}

// Reconnect clears playerID's disconnected marker and, once every
// disconnected player is back, resumes play (or leaves the game ended if
// the caller already determined no players remain). Per §4.C's
// `paused --PLAYER_RECONNECTED--> playing` transition.
func Reconnect(state *model.GameState, playerID string, resumePhase model.Phase) *model.GameState {
	next := state.Clone()
	delete(next.DisconnectedPlayers, playerID)
	if next.Phase == model.PhasePaused && len(next.DisconnectedPlayers) == 0 {
		next.Phase = resumePhase
	}
	return next
}

// Forfeit removes a disconnected player's jarl and warriors (their grace
// timer having expired), eliminating them, and re-evaluates whether that
// ends the game. It does not itself advance the turn — callers that
// forfeited the current player are expected to also advance it.
func Forfeit(state *model.GameState, playerID string) (*model.GameState, []model.GameEvent) {
	next := state.Clone()
	delete(next.DisconnectedPlayers, playerID)

	var events []model.GameEvent
	if p, ok := next.PlayerByID(playerID); ok {
		p.IsEliminated = true
	}
	remaining := next.Pieces[:0]
	for _, piece := range next.Pieces {
		if piece.PlayerID == playerID {
			events = append(events, model.GameEvent{
				Type:     model.EventEliminated,
				PieceID:  piece.ID,
				Position: piece.Position,
				Cause:    model.CauseForfeit,
			})
			continue
		}
		remaining = append(remaining, piece)
	}
	next.Pieces = remaining

	active := 0
	var lastID string
	for _, p := range next.Players {
		if !p.IsEliminated {
			active++
			lastID = p.ID
		}
	}
	if active <= 1 && len(next.Players) > 1 {
		next.Phase = model.PhaseEnded
		next.WinnerID = lastID
		next.WinCondition = model.WinLastStanding
		events = append(events, model.GameEvent{
			Type:         model.EventGameEnded,
			WinnerID:     lastID,
			WinCondition: model.WinLastStanding,
		})
	} else if next.Phase == model.PhasePaused {
		next.Phase = model.PhasePlaying
	}

	return next, events
}
