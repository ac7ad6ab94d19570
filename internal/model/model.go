// Package model holds the Jarls data model shared by the rules engine, the
// game state machine, and persistence: §3 of the spec.
package model

import (
	"time"

	"github.com/seednode/jarlsd/internal/hexgeom"
)

// Terrain controls how many holes a board is seeded with.
type Terrain string

const (
	TerrainCalm        Terrain = "calm"
	TerrainTreacherous Terrain = "treacherous"
	TerrainChaotic     Terrain = "chaotic"
)

// HoleCount returns the target hole count for a terrain, per §3.
func (t Terrain) HoleCount() int {
	switch t {
	case TerrainTreacherous:
		return 6
	case TerrainChaotic:
		return 9
	default:
		return 3
	}
}

// Phase is the game's lifecycle phase, §4.C.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhasePlaying    Phase = "playing"
	PhaseStarvation Phase = "starvation"
	PhasePaused     Phase = "paused"
	PhaseEnded      Phase = "ended"
)

// PieceType distinguishes the two piece kinds and their base strengths.
type PieceType string

const (
	PieceJarl    PieceType = "jarl"
	PieceWarrior PieceType = "warrior"
)

// BaseStrength returns the piece's combat strength before momentum/support.
func (t PieceType) BaseStrength() int {
	if t == PieceJarl {
		return 2
	}
	return 1
}

// WinCondition names how a game ended.
type WinCondition string

const (
	WinThrone      WinCondition = "throne"
	WinLastStanding WinCondition = "lastStanding"
)

// EliminationCause names why a piece left the board.
type EliminationCause string

const (
	CauseEdge       EliminationCause = "edge"
	CauseHole       EliminationCause = "hole"
	CauseStarvation EliminationCause = "starvation"
	// CauseForfeit marks pieces removed because their owner's disconnect
	// grace timer expired, distinct from a starvation sacrifice.
	CauseForfeit EliminationCause = "forfeit"
)

// GameConfig is immutable once a game leaves the lobby.
type GameConfig struct {
	PlayerCount  int     `json:"playerCount"`
	BoardRadius  int     `json:"boardRadius"`
	WarriorCount int     `json:"warriorCount"`
	TurnTimerMs  *int    `json:"turnTimerMs"`
	Terrain      Terrain `json:"terrain"`

	// StarveJarlWithoutWarriors is the §9 open-question rule flag,
	// default false, with JarlStarvationRounds (default 5) as its round
	// count. Both are stored with the config only: the rules engine reads
	// neither, so a player with zero warriors keeps their jarl whatever
	// the flag says.
	StarveJarlWithoutWarriors bool `json:"starveJarlWithoutWarriors"`
	JarlStarvationRounds      int  `json:"jarlStarvationRounds"`
}

// DefaultGameConfig returns the spec's documented defaults.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		PlayerCount:          2,
		BoardRadius:          3,
		WarriorCount:         5,
		Terrain:              TerrainCalm,
		JarlStarvationRounds: 5,
	}
}

// AIConfig describes an AI-controlled player's adapter.
type AIConfig struct {
	Type         string `json:"type"`
	Difficulty   string `json:"difficulty,omitempty"`
	Model        string `json:"model,omitempty"`
	CustomPrompt string `json:"customPrompt,omitempty"`
}

// Player is a game participant.
type Player struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Color        string    `json:"color,omitempty"`
	IsEliminated bool      `json:"isEliminated"`
	IsAI         bool      `json:"isAI,omitempty"`
	AIConfig     *AIConfig `json:"aiConfig,omitempty"`
}

// Piece is a unit on the board. PlayerID is empty for neutral pieces
// (none exist in the current ruleset, but the field stays nullable per
// spec §3).
type Piece struct {
	ID       string      `json:"id"`
	Type     PieceType   `json:"type"`
	PlayerID string      `json:"playerId,omitempty"`
	Position hexgeom.Hex `json:"position"`
}

// Strength returns the piece's base combat strength.
func (p Piece) Strength() int {
	return p.Type.BaseStrength()
}

// Hole is a destructive board hex.
type Hole struct {
	Position hexgeom.Hex `json:"position"`
}

// EventType discriminates GameEvent's union.
type EventType string

const (
	EventMove       EventType = "MOVE"
	EventPush       EventType = "PUSH"
	EventEliminated EventType = "ELIMINATED"
	EventGameEnded  EventType = "GAME_ENDED"
)

// GameEvent is the discriminated union of §3. Only the fields relevant to
// Type are populated.
type GameEvent struct {
	Type EventType `json:"type"`

	// MOVE
	PieceID     string      `json:"pieceId,omitempty"`
	From        hexgeom.Hex `json:"from,omitempty"`
	To          hexgeom.Hex `json:"to,omitempty"`
	HasMomentum bool        `json:"hasMomentum,omitempty"`

	// PUSH (also uses PieceID/From/To above)
	Depth int `json:"depth,omitempty"`

	// ELIMINATED (uses PieceID, Position below)
	Position hexgeom.Hex      `json:"position,omitempty"`
	Cause    EliminationCause `json:"cause,omitempty"`

	// GAME_ENDED
	WinnerID     string       `json:"winnerId,omitempty"`
	WinCondition WinCondition `json:"winCondition,omitempty"`
}

// StarvationCandidate names a player's piece eligible for sacrifice.
type StarvationCandidate struct {
	PlayerID string   `json:"playerId"`
	PieceIDs []string `json:"pieceIds"`
}

// GameState is the complete mutable state of one game, §3.
type GameState struct {
	ID     string     `json:"id"`
	Phase  Phase      `json:"phase"`
	Config GameConfig `json:"config"`

	Players []Player `json:"players"`
	Pieces  []Piece  `json:"pieces"`
	Holes   []Hole   `json:"holes"`

	CurrentPlayerID        string `json:"currentPlayerId"`
	TurnNumber             int    `json:"turnNumber"`
	RoundNumber            int    `json:"roundNumber"`
	FirstPlayerIndex       int    `json:"firstPlayerIndex"`
	RoundsSinceElimination int    `json:"roundsSinceElimination"`

	WinnerID     string       `json:"winnerId,omitempty"`
	WinCondition WinCondition `json:"winCondition,omitempty"`

	StarvationCandidates     []StarvationCandidate `json:"starvationCandidates,omitempty"`
	PendingStarvationChoices map[string]string     `json:"pendingStarvationChoices,omitempty"` // playerID -> pieceID

	DisconnectedPlayers map[string]time.Time `json:"disconnectedPlayers,omitempty"` // playerID -> disconnected-at

	// RoundsWithoutWarriors is a per-player counter reserved for the
	// optional jarl-starvation rule. It starts empty and no code updates
	// it.
	RoundsWithoutWarriors map[string]int `json:"roundsWithoutWarriors,omitempty"`

	Version int `json:"version"`
}

// Clone returns a deep copy of the state, so that readers outside the
// owning game actor never hold a reference to live state (spec §3
// "Ownership").
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	out := *s

	out.Players = append([]Player(nil), s.Players...)
	for i := range out.Players {
		if s.Players[i].AIConfig != nil {
			cfg := *s.Players[i].AIConfig
			out.Players[i].AIConfig = &cfg
		}
	}

	out.Pieces = append([]Piece(nil), s.Pieces...)
	out.Holes = append([]Hole(nil), s.Holes...)

	if s.StarvationCandidates != nil {
		out.StarvationCandidates = make([]StarvationCandidate, len(s.StarvationCandidates))
		for i, c := range s.StarvationCandidates {
			out.StarvationCandidates[i] = StarvationCandidate{
				PlayerID: c.PlayerID,
				PieceIDs: append([]string(nil), c.PieceIDs...),
			}
		}
	}

	if s.PendingStarvationChoices != nil {
		out.PendingStarvationChoices = make(map[string]string, len(s.PendingStarvationChoices))
		for k, v := range s.PendingStarvationChoices {
			out.PendingStarvationChoices[k] = v
		}
	}

	if s.DisconnectedPlayers != nil {
		out.DisconnectedPlayers = make(map[string]time.Time, len(s.DisconnectedPlayers))
		for k, v := range s.DisconnectedPlayers {
			out.DisconnectedPlayers[k] = v
		}
	}

	if s.RoundsWithoutWarriors != nil {
		out.RoundsWithoutWarriors = make(map[string]int, len(s.RoundsWithoutWarriors))
		for k, v := range s.RoundsWithoutWarriors {
			out.RoundsWithoutWarriors[k] = v
		}
	}

	return &out
}

// PieceByID finds a piece by id, or returns ok=false.
func (s *GameState) PieceByID(id string) (Piece, bool) {
	for _, p := range s.Pieces {
		if p.ID == id {
			return p, true
		}
	}
	return Piece{}, false
}

// PieceAt finds the piece occupying hex h, if any.
func (s *GameState) PieceAt(h hexgeom.Hex) (Piece, bool) {
	for _, p := range s.Pieces {
		if p.Position == h {
			return p, true
		}
	}
	return Piece{}, false
}

// IsHole reports whether h is one of the board's holes.
func (s *GameState) IsHole(h hexgeom.Hex) bool {
	for _, hole := range s.Holes {
		if hole.Position == h {
			return true
		}
	}
	return false
}

// PlayerByID finds a player by id.
func (s *GameState) PlayerByID(id string) (*Player, bool) {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i], true
		}
	}
	return nil, false
}

// JarlOf returns the jarl piece belonging to playerID, if still present.
func (s *GameState) JarlOf(playerID string) (Piece, bool) {
	for _, p := range s.Pieces {
		if p.PlayerID == playerID && p.Type == PieceJarl {
			return p, true
		}
	}
	return Piece{}, false
}

// WarriorsOf returns every warrior belonging to playerID.
func (s *GameState) WarriorsOf(playerID string) []Piece {
	var out []Piece
	for _, p := range s.Pieces {
		if p.PlayerID == playerID && p.Type == PieceWarrior {
			out = append(out, p)
		}
	}
	return out
}
