package gamestate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seednode/jarlsd/internal/model"
	"github.com/seednode/jarlsd/internal/rules"
)

func testConfig() model.GameConfig {
	return model.GameConfig{
		PlayerCount:  2,
		BoardRadius:  3,
		WarriorCount: 2,
		Terrain:      model.TerrainCalm,
	}
}

func TestJoin_FillsLobbyThenRejects(t *testing.T) {
	state := New("g1", testConfig())

	state, err := Join(state, "p1", "Alice")
	require.NoError(t, err)
	state, err = Join(state, "p2", "Bob")
	require.NoError(t, err)
	assert.Len(t, state.Players, 2)

	_, err = Join(state, "p3", "Carol")
	assert.ErrorIs(t, err, ErrLobbyFull)
}

func TestJoin_RejectsOutsideLobby(t *testing.T) {
	state := New("g1", testConfig())
	state, _ = Join(state, "p1", "Alice")
	state, _ = Join(state, "p2", "Bob")
	state, err := Start(state, "p1", 1)
	require.NoError(t, err)

	_, err = Join(state, "p3", "Carol")
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestStart_RequiresHostAndMinPlayers(t *testing.T) {
	state := New("g1", testConfig())
	state, _ = Join(state, "p1", "Alice")

	_, err := Start(state, "p1", 1)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	state, _ = Join(state, "p2", "Bob")

	_, err = Start(state, "p2", 1)
	assert.ErrorIs(t, err, ErrNotHost)

	next, err := Start(state, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, model.PhasePlaying, next.Phase)
	assert.Equal(t, "p1", next.CurrentPlayerID)
	assert.NotEmpty(t, next.Pieces)
}

func TestAddAI_MarksPlayerAI(t *testing.T) {
	state := New("g1", testConfig())
	state, err := AddAI(state, "ai1", "AI:heuristic", model.AIConfig{Type: "heuristic"})
	require.NoError(t, err)

	p, ok := state.PlayerByID("ai1")
	require.True(t, ok)
	assert.True(t, p.IsAI)
	require.NotNil(t, p.AIConfig)
	assert.Equal(t, "heuristic", p.AIConfig.Type)
}

func TestDisconnectReconnect_PausesAndResumes(t *testing.T) {
	state := New("g1", testConfig())
	state, _ = Join(state, "p1", "Alice")
	state, _ = Join(state, "p2", "Bob")
	state, _ = Start(state, "p1", 1)

	now := time.Now()
	state = Disconnect(state, "p1", now)
	assert.Equal(t, model.PhasePaused, state.Phase)
	_, disconnected := state.DisconnectedPlayers["p1"]
	assert.True(t, disconnected)

	state = Reconnect(state, "p1", model.PhasePlaying)
	assert.Equal(t, model.PhasePlaying, state.Phase)
	_, stillDisconnected := state.DisconnectedPlayers["p1"]
	assert.False(t, stillDisconnected)
}

func TestReconnect_StaysPausedUntilEveryoneBack(t *testing.T) {
	state := New("g1", testConfig())
	state, _ = Join(state, "p1", "Alice")
	state, _ = Join(state, "p2", "Bob")
	state, _ = Start(state, "p1", 1)

	now := time.Now()
	state = Disconnect(state, "p1", now)
	state = Disconnect(state, "p2", now)

	state = Reconnect(state, "p1", model.PhasePlaying)
	assert.Equal(t, model.PhasePaused, state.Phase, "p2 is still disconnected")

	state = Reconnect(state, "p2", model.PhasePlaying)
	assert.Equal(t, model.PhasePlaying, state.Phase)
}

func TestForfeit_EliminatesAndEndsGameForLastStanding(t *testing.T) {
	state := New("g1", testConfig())
	state, _ = Join(state, "p1", "Alice")
	state, _ = Join(state, "p2", "Bob")
	state, _ = Start(state, "p1", 1)
	state = Disconnect(state, "p2", time.Now())

	next, events := Forfeit(state, "p2")

	require.NotEmpty(t, events)
	var sawEliminated, sawGameEnded bool
	for _, e := range events {
		switch e.Type {
		case model.EventEliminated:
			sawEliminated = true
		case model.EventGameEnded:
			sawGameEnded = true
		}
	}
	assert.True(t, sawEliminated)
	assert.True(t, sawGameEnded)

	p2, ok := next.PlayerByID("p2")
	require.True(t, ok)
	assert.True(t, p2.IsEliminated)

	for _, piece := range next.Pieces {
		assert.NotEqual(t, "p2", piece.PlayerID)
	}

	assert.Equal(t, model.PhaseEnded, next.Phase)
	assert.Equal(t, "p1", next.WinnerID)
	assert.Equal(t, model.WinLastStanding, next.WinCondition)
}

func TestPlayTurn_DelegatesToRulesEngine(t *testing.T) {
	state := New("g1", testConfig())
	state, _ = Join(state, "p1", "Alice")
	state, _ = Join(state, "p2", "Bob")
	state, _ = Start(state, "p1", 1)

	jarl, ok := state.JarlOf("p1")
	require.True(t, ok)

	// Play the first move the engine enumerates for whichever corner the
	// seeded layout put p1's jarl on: just confirm the call reaches the
	// engine and returns a move event without erroring, rather than
	// asserting on exact geometry (setup's corner assignment isn't this
	// test's concern).
	moves, err := rules.GetValidMoves(state, jarl.ID)
	require.NoError(t, err)
	require.NotEmpty(t, moves)
	next, events, err := PlayTurn(state, "p1", jarl.ID, moves[0].Destination)
	require.NoError(t, err)
	assert.NotNil(t, next)
	assert.NotEmpty(t, events)
}
