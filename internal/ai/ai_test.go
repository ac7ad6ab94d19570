package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seednode/jarlsd/internal/gamestate"
	"github.com/seednode/jarlsd/internal/model"
)

func newPlayingState(t *testing.T) *model.GameState {
	t.Helper()
	state := gamestate.New("g1", model.GameConfig{
		PlayerCount:  2,
		BoardRadius:  3,
		WarriorCount: 2,
		Terrain:      model.TerrainCalm,
	})
	var err error
	state, err = gamestate.Join(state, "p1", "Alice")
	require.NoError(t, err)
	state, err = gamestate.Join(state, "p2", "Bob")
	require.NoError(t, err)
	state, err = gamestate.Start(state, "p1", 1)
	require.NoError(t, err)
	return state
}

func TestHeuristicAdapter_GenerateMove_PicksLegalMove(t *testing.T) {
	state := newPlayingState(t)
	adapter := NewAdapter(model.AIConfig{Type: "heuristic"}, nil)

	cmd, err := adapter.GenerateMove(context.Background(), state, "p1")
	require.NoError(t, err)
	assert.NotEmpty(t, cmd.PieceID)

	piece, ok := state.PieceByID(cmd.PieceID)
	require.True(t, ok)
	assert.Equal(t, "p1", piece.PlayerID)
}

func TestHeuristicAdapter_GenerateMove_NoLegalMoveForUnknownPlayer(t *testing.T) {
	state := newPlayingState(t)
	adapter := NewAdapter(model.AIConfig{Type: "heuristic"}, nil)

	_, err := adapter.GenerateMove(context.Background(), state, "nobody")
	assert.ErrorIs(t, err, ErrNoLegalMove)
}

func TestNewAdapter_UnknownTypeFallsBackToHeuristic(t *testing.T) {
	adapter := NewAdapter(model.AIConfig{Type: "llm-experimental"}, nil)
	_, ok := adapter.(*heuristicAdapter)
	assert.True(t, ok)
}

func TestChooseStarvationSacrifice_PicksLowestID(t *testing.T) {
	assert.Equal(t, "", ChooseStarvationSacrifice(nil))
	assert.Equal(t, "p1:warrior:0", ChooseStarvationSacrifice([]string{"p1:warrior:1", "p1:warrior:0", "p1:warrior:2"}))
}
