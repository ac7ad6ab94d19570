// Package manager implements the Game Manager of spec §4.E: the registry
// mapping gameId to an in-memory game actor, and the per-game lock that
// serializes validate→mutate→schedule-persist. It is adapted from the
// teacher's GameManager/Hub split in celebrity.go, generalized from one
// channel-actor per celebrity lobby to one mutex-guarded actor per Jarls
// game plus explicit disconnect-grace and AI-turn background work.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seednode/jarlsd/internal/ai"
	"github.com/seednode/jarlsd/internal/gamestate"
	"github.com/seednode/jarlsd/internal/hexgeom"
	"github.com/seednode/jarlsd/internal/ids"
	"github.com/seednode/jarlsd/internal/model"
	"github.com/seednode/jarlsd/internal/rules"
	"github.com/seednode/jarlsd/internal/store"
)

var (
	ErrGameNotFound = errors.New("manager: game not found")
	ErrStaleMove    = errors.New("manager: stale move request")
	ErrUnauthorized = errors.New("manager: unauthorized")
)

// Broadcaster delivers a room-scoped event to every client subscribed to
// a game, per §4.H. The realtime transport implements this; Manager only
// depends on the interface to avoid an import cycle.
type Broadcaster interface {
	Broadcast(gameID string, eventType string, payload any)
}

// noopBroadcaster is used until SetBroadcaster is called (e.g. in tests).
type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, string, any) {}

// Config holds the manager's tunable timers, per SPEC_FULL.md §1.1.
type Config struct {
	DisconnectGrace   time.Duration
	StarvationTimeout time.Duration
	AITimeout         time.Duration
}

type gameActor struct {
	mu    sync.Mutex
	state *model.GameState

	disconnectTimers map[string]*time.Timer
	starvationTimer  *time.Timer
}

// Manager owns every active game actor and the single store needed to
// persist and recover them.
type Manager struct {
	cfg Config
	log *zap.SugaredLogger
	db  *store.Store

	broadcaster Broadcaster

	mu    sync.Mutex
	games map[string]*gameActor

	seedCounter int64
}

// New builds a Manager. Call SetBroadcaster once the realtime transport
// is constructed, since it in turn depends on this Manager.
func New(cfg Config, log *zap.SugaredLogger, db *store.Store) *Manager {
	return &Manager{
		cfg:         cfg,
		log:         log,
		db:          db,
		broadcaster: noopBroadcaster{},
		games:       make(map[string]*gameActor),
	}
}

// SetBroadcaster wires in the realtime transport's room fan-out.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

func (m *Manager) nextSeed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seedCounter++
	return m.seedCounter
}

func (m *Manager) actor(gameID string) (*gameActor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.games[gameID]
	return a, ok
}

// Create initializes a new lobby-phase game and persists its first
// snapshot (version 1).
func (m *Manager) Create(ctx context.Context, cfg model.GameConfig) (string, error) {
	if cfg.PlayerCount == 0 {
		cfg.PlayerCount = model.DefaultGameConfig().PlayerCount
	}
	if cfg.BoardRadius == 0 {
		cfg.BoardRadius = model.DefaultGameConfig().BoardRadius
	}
	if cfg.WarriorCount == 0 {
		cfg.WarriorCount = model.DefaultGameConfig().WarriorCount
	}
	if cfg.Terrain == "" {
		cfg.Terrain = model.DefaultGameConfig().Terrain
	}
	if cfg.JarlStarvationRounds == 0 {
		cfg.JarlStarvationRounds = model.DefaultGameConfig().JarlStarvationRounds
	}

	gameID := ids.NewGameID()
	state := gamestate.New(gameID, cfg)
	state.Version = 1

	a := &gameActor{state: state, disconnectTimers: map[string]*time.Timer{}}

	m.mu.Lock()
	m.games[gameID] = a
	m.mu.Unlock()

	if err := m.db.SaveSnapshot(ctx, gameID, state, 1, string(model.PhaseLobby)); err != nil {
		m.log.Errorw("save initial snapshot failed", "gameId", gameID, "error", err)
	}
	if err := m.db.SaveEvent(ctx, gameID, "GAME_CREATED", map[string]any{"config": cfg}); err != nil {
		m.log.Errorw("save GAME_CREATED event failed", "gameId", gameID, "error", err)
	}

	return gameID, nil
}

// Join adds a human player to a lobby, per §4.E.
func (m *Manager) Join(ctx context.Context, gameID, playerName string) (string, *model.GameState, error) {
	a, ok := m.actor(gameID)
	if !ok {
		return "", nil, ErrGameNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	playerID := ids.NewPlayerID()
	next, err := gamestate.Join(a.state, playerID, playerName)
	if err != nil {
		return "", nil, err
	}

	next.Version = a.state.Version + 1
	a.state = next
	m.persistAsync(gameID, next)
	m.broadcaster.Broadcast(gameID, "playerJoined", map[string]any{"playerId": playerID, "playerName": playerName})

	return playerID, next.Clone(), nil
}

// AddAI adds an AI-controlled player, per §4.I.
func (m *Manager) AddAI(ctx context.Context, gameID string, aiCfg model.AIConfig) (string, error) {
	a, ok := m.actor(gameID)
	if !ok {
		return "", ErrGameNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	playerID := ids.NewPlayerID()
	name := "AI:" + aiCfg.Type
	next, err := gamestate.AddAI(a.state, playerID, name, aiCfg)
	if err != nil {
		return "", err
	}

	next.Version = a.state.Version + 1
	a.state = next
	m.persistAsync(gameID, next)
	m.broadcaster.Broadcast(gameID, "playerJoined", map[string]any{"playerId": playerID, "playerName": name})

	return playerID, nil
}

// Start transitions a lobby to playing, per §4.E.
func (m *Manager) Start(ctx context.Context, gameID, callerPlayerID string) (*model.GameState, error) {
	a, ok := m.actor(gameID)
	if !ok {
		return nil, ErrGameNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := gamestate.Start(a.state, callerPlayerID, m.nextSeed())
	if err != nil {
		return nil, err
	}

	next.Version = a.state.Version + 1
	a.state = next
	m.persistAsync(gameID, next)
	m.broadcaster.Broadcast(gameID, "gameState", next.Clone())

	m.maybeTriggerAILocked(gameID, a)

	return next.Clone(), nil
}

// MakeMove validates and applies a move command, per §4.E step-by-step.
// clientTurnNumber, if non-nil, must match the game's current turn number
// or the request is rejected as stale without touching state.
func (m *Manager) MakeMove(ctx context.Context, gameID, playerID, pieceID string, destination hexgeom.Hex, clientTurnNumber *int) (*model.GameState, []model.GameEvent, error) {
	a, ok := m.actor(gameID)
	if !ok {
		return nil, nil, ErrGameNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if clientTurnNumber != nil && *clientTurnNumber != a.state.TurnNumber {
		return nil, nil, ErrStaleMove
	}

	next, events, err := gamestate.PlayTurn(a.state, playerID, pieceID, destination)
	if err != nil {
		return nil, nil, err
	}

	next.Version = a.state.Version + 1
	a.state = next
	m.persistAsync(gameID, next)
	m.broadcastTurn(gameID, next, events)

	if next.Phase == model.PhaseStarvation {
		m.armStarvationTimerLocked(gameID, a)
	}

	m.maybeTriggerAILocked(gameID, a)

	return next.Clone(), events, nil
}

// SubmitStarvationChoice records one player's sacrifice, per §4.E.
func (m *Manager) SubmitStarvationChoice(ctx context.Context, gameID, playerID, pieceID string) (*model.GameState, []model.GameEvent, error) {
	a, ok := m.actor(gameID)
	if !ok {
		return nil, nil, ErrGameNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next, events, err := gamestate.StarvationChoice(a.state, playerID, pieceID)
	if err != nil {
		return nil, nil, err
	}

	next.Version = a.state.Version + 1
	a.state = next
	m.persistAsync(gameID, next)

	if next.Phase != model.PhaseStarvation {
		if a.starvationTimer != nil {
			a.starvationTimer.Stop()
			a.starvationTimer = nil
		}
		m.broadcaster.Broadcast(gameID, "gameState", next.Clone())
		m.maybeTriggerAILocked(gameID, a)
	}

	return next.Clone(), events, nil
}

// armStarvationTimerLocked starts the per-round auto-choice timeout of
// spec §5: on expiry, every candidate who hasn't chosen gets the lowest
// piece ID picked for them.
func (m *Manager) armStarvationTimerLocked(gameID string, a *gameActor) {
	if a.starvationTimer != nil {
		a.starvationTimer.Stop()
	}
	a.starvationTimer = time.AfterFunc(m.cfg.StarvationTimeout, func() {
		m.autoResolveStarvation(gameID)
	})
}

func (m *Manager) autoResolveStarvation(gameID string) {
	a, ok := m.actor(gameID)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Phase != model.PhaseStarvation {
		return
	}

	for _, c := range a.state.StarvationCandidates {
		if _, chosen := a.state.PendingStarvationChoices[c.PlayerID]; chosen {
			continue
		}
		choice := ai.ChooseStarvationSacrifice(c.PieceIDs)
		next, events, err := gamestate.StarvationChoice(a.state, c.PlayerID, choice)
		if err != nil {
			m.log.Errorw("auto starvation choice failed", "gameId", gameID, "playerId", c.PlayerID, "error", err)
			continue
		}
		next.Version = a.state.Version + 1
		a.state = next
		m.persistAsync(gameID, next)
		if len(events) > 0 {
			m.broadcaster.Broadcast(gameID, "gameState", next.Clone())
		}
	}
}

// OnDisconnect marks a player disconnected and arms their grace timer,
// per §4.E.
func (m *Manager) OnDisconnect(gameID, playerID string) {
	a, ok := m.actor(gameID)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = gamestate.Disconnect(a.state, playerID, time.Now())
	m.broadcaster.Broadcast(gameID, "playerLeft", map[string]any{"playerId": playerID})

	if existing, ok := a.disconnectTimers[playerID]; ok {
		existing.Stop()
	}
	a.disconnectTimers[playerID] = time.AfterFunc(m.cfg.DisconnectGrace, func() {
		m.forfeit(gameID, playerID)
	})
}

// OnReconnect cancels a player's grace timer and, once everyone is back,
// resumes play.
func (m *Manager) OnReconnect(gameID, playerID string) (*model.GameState, error) {
	a, ok := m.actor(gameID)
	if !ok {
		return nil, ErrGameNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if t, ok := a.disconnectTimers[playerID]; ok {
		t.Stop()
		delete(a.disconnectTimers, playerID)
	}

	resumePhase := model.PhasePlaying
	if len(a.state.StarvationCandidates) > 0 {
		resumePhase = model.PhaseStarvation
	}
	a.state = gamestate.Reconnect(a.state, playerID, resumePhase)

	m.broadcaster.Broadcast(gameID, "playerReconnected", map[string]any{"playerId": playerID})
	m.maybeTriggerAILocked(gameID, a)

	return a.state.Clone(), nil
}

func (m *Manager) forfeit(gameID, playerID string) {
	a, ok := m.actor(gameID)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, stillDisconnected := a.state.DisconnectedPlayers[playerID]; !stillDisconnected {
		return // reconnected before the grace timer fired
	}

	next, events := gamestate.Forfeit(a.state, playerID)
	next.Version = a.state.Version + 1
	a.state = next
	delete(a.disconnectTimers, playerID)

	m.persistAsync(gameID, next)
	m.broadcastTurn(gameID, next, events)
	m.maybeTriggerAILocked(gameID, a)
}

// maybeTriggerAILocked spawns background work to generate and apply the
// current player's move if they're AI-controlled. Called with a.mu held;
// the spawned goroutine re-acquires the lock itself via MakeMove.
func (m *Manager) maybeTriggerAILocked(gameID string, a *gameActor) {
	if a.state.Phase != model.PhasePlaying {
		return
	}
	current, ok := a.state.PlayerByID(a.state.CurrentPlayerID)
	if !ok || !current.IsAI || current.AIConfig == nil {
		return
	}

	aiCfg := *current.AIConfig
	playerID := current.ID
	snapshot := a.state.Clone()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.AITimeout)
		defer cancel()

		adapter := ai.NewAdapter(aiCfg, nil)
		cmd, err := adapter.GenerateMove(ctx, snapshot, playerID)
		if err != nil {
			m.log.Warnw("AI adapter produced no move", "gameId", gameID, "playerId", playerID, "error", err)
			return
		}

		if _, _, err := m.MakeMove(context.Background(), gameID, playerID, cmd.PieceID, cmd.Destination, nil); err != nil {
			m.log.Warnw("AI move rejected", "gameId", gameID, "playerId", playerID, "error", err)
		}
	}()
}

// broadcastTurn emits turnPlayed and, if the move ended the game,
// gameEnded, per §4.H.
func (m *Manager) broadcastTurn(gameID string, state *model.GameState, events []model.GameEvent) {
	m.broadcaster.Broadcast(gameID, "turnPlayed", map[string]any{
		"newState": state.Clone(),
		"events":   events,
	})
	for _, e := range events {
		if e.Type == model.EventGameEnded {
			m.broadcaster.Broadcast(gameID, "gameEnded", map[string]any{
				"winnerId":     e.WinnerID,
				"winCondition": e.WinCondition,
			})
		}
	}
	if state.Phase == model.PhaseStarvation {
		m.broadcaster.Broadcast(gameID, "starvationRequired", map[string]any{"candidates": state.StarvationCandidates})
	}
}

// persistAsync schedules the snapshot write without blocking the caller
// or releasing the per-game lock first, per §4.E/§5: the next mutation on
// this game doesn't wait for the write to land. It writes no game events;
// the only event-log entry is the GAME_CREATED row Create writes. Callers are
// responsible for having already set state.Version to the version this
// write is meant to produce (one past the version last persisted for
// this game), per spec §4.D's optimistic-lock contract.
func (m *Manager) persistAsync(gameID string, state *model.GameState) {
	snapshot := state.Clone()
	go func() {
		bgCtx := context.Background()
		if err := m.db.SaveSnapshot(bgCtx, gameID, snapshot, snapshot.Version, string(snapshot.Phase)); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				m.log.Errorw("snapshot version conflict; game state may be corrupted", "gameId", gameID)
				return
			}
			m.log.Errorw("save snapshot failed", "gameId", gameID, "error", err)
		}
	}()
}

// GetState returns a deep copy of a game's current state.
func (m *Manager) GetState(gameID string) (*model.GameState, error) {
	a, ok := m.actor(gameID)
	if !ok {
		return nil, ErrGameNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone(), nil
}

// GetValidMoves enumerates legal moves for one piece in a game.
func (m *Manager) GetValidMoves(gameID, pieceID string) ([]rules.ValidMove, error) {
	a, ok := m.actor(gameID)
	if !ok {
		return nil, ErrGameNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return rules.GetValidMoves(a.state, pieceID)
}

// GameSummary is the list-view shape returned by GET /api/games.
type GameSummary struct {
	GameID      string         `json:"gameId"`
	Status      model.Phase    `json:"status"`
	PlayerCount int            `json:"playerCount"`
	MaxPlayers  int            `json:"maxPlayers"`
	TurnTimerMs *int           `json:"turnTimerMs"`
	Players     []model.Player `json:"players"`
}

// ListGames returns a summary of every currently tracked game.
func (m *Manager) ListGames() []GameSummary {
	m.mu.Lock()
	actors := make([]*gameActor, 0, len(m.games))
	for _, a := range m.games {
		actors = append(actors, a)
	}
	m.mu.Unlock()

	out := make([]GameSummary, 0, len(actors))
	for _, a := range actors {
		a.mu.Lock()
		out = append(out, GameSummary{
			GameID:      a.state.ID,
			Status:      a.state.Phase,
			PlayerCount: len(a.state.Players),
			MaxPlayers:  a.state.Config.PlayerCount,
			TurnTimerMs: a.state.Config.TurnTimerMs,
			Players:     append([]model.Player(nil), a.state.Players...),
		})
		a.mu.Unlock()
	}
	return out
}

// Stats reports aggregate counts for GET /api/games/stats.
func (m *Manager) Stats(ctx context.Context) (store.Stats, error) {
	return m.db.Stats(ctx)
}

// Recover re-hydrates one actor per active snapshot on process start, per
// §4.E.
func (m *Manager) Recover(ctx context.Context) error {
	snapshots, err := m.db.LoadActiveSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("manager: recover: %w", err)
	}

	for _, snap := range snapshots {
		var state model.GameState
		if err := json.Unmarshal(snap.Data, &state); err != nil {
			m.log.Errorw("recover: corrupt snapshot skipped", "gameId", snap.GameID, "error", err)
			continue
		}
		state.Version = snap.Version

		a := &gameActor{state: &state, disconnectTimers: map[string]*time.Timer{}}
		m.mu.Lock()
		m.games[snap.GameID] = a
		m.mu.Unlock()
	}

	m.log.Infow("recovered active games", "count", len(snapshots))
	return nil
}
