package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seednode/jarlsd/internal/hexgeom"
	"github.com/seednode/jarlsd/internal/model"
)

func baseConfig(radius int) model.GameConfig {
	return model.GameConfig{
		PlayerCount:  2,
		BoardRadius:  radius,
		WarriorCount: 0,
		Terrain:      model.TerrainCalm,
	}
}

func newTwoPlayerState(radius int) *model.GameState {
	return &model.GameState{
		ID:                   "g1",
		Phase:                model.PhasePlaying,
		Config:               baseConfig(radius),
		Players:              []model.Player{{ID: "p1"}, {ID: "p2"}},
		CurrentPlayerID:      "p1",
		FirstPlayerIndex:     0,
		PendingStarvationChoices: map[string]string{},
	}
}

func TestApplyMove_ThroneVictory(t *testing.T) {
	state := newTwoPlayerState(3)
	state.Pieces = []model.Piece{
		{ID: "p1:jarl", Type: model.PieceJarl, PlayerID: "p1", Position: hexgeom.Hex{Q: -1, R: 0}},
		{ID: "p2:jarl", Type: model.PieceJarl, PlayerID: "p2", Position: hexgeom.Hex{Q: 3, R: -3}},
	}

	next, events, err := ApplyMove(state, "p1", "p1:jarl", hexgeom.Throne)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventMove, events[0].Type)
	assert.Equal(t, model.EventGameEnded, events[1].Type)
	assert.Equal(t, model.WinThrone, events[1].WinCondition)
	assert.Equal(t, "p1", next.WinnerID)
	assert.Equal(t, model.PhaseEnded, next.Phase)
}

func TestApplyMove_PushOffEdgeEliminates(t *testing.T) {
	// p1's jarl (strength 2) attacks east into p2's lone warrior sitting
	// right on the edge; the push has nowhere to land, so the defender is
	// eliminated instead of displaced.
	state := newTwoPlayerState(3)
	state.Pieces = []model.Piece{
		{ID: "p1:jarl", Type: model.PieceJarl, PlayerID: "p1", Position: hexgeom.Hex{Q: 2, R: 0}},
		{ID: "p2:jarl", Type: model.PieceJarl, PlayerID: "p2", Position: hexgeom.Hex{Q: -3, R: 0}},
		{ID: "p2:w1", Type: model.PieceWarrior, PlayerID: "p2", Position: hexgeom.Hex{Q: 3, R: 0}},
	}

	moves, err := GetValidMoves(state, "p1:jarl")
	require.NoError(t, err)

	var attackMove *ValidMove
	for i := range moves {
		if moves[i].IsAttack {
			attackMove = &moves[i]
		}
	}
	require.NotNil(t, attackMove, "expected an attack move to be enumerated")

	next, events, err := ApplyMove(state, "p1", "p1:jarl", attackMove.Destination)
	require.NoError(t, err)

	var sawEliminated bool
	for _, e := range events {
		if e.Type == model.EventEliminated {
			sawEliminated = true
			assert.Equal(t, model.CauseEdge, e.Cause)
			assert.Equal(t, "p2:w1", e.PieceID)
		}
	}
	assert.True(t, sawEliminated)

	_, stillThere := next.PieceByID("p2:w1")
	assert.False(t, stillThere)
}

func TestApplyMove_PushBlockedByCompressionNotEnumerated(t *testing.T) {
	// p1's jarl (strength 2) would beat p2's lone warrior (strength 1) in
	// a straight fight, but the push direction runs straight into the
	// Throne, so the whole attack must be illegal and absent from
	// GetValidMoves.
	state := newTwoPlayerState(3)
	state.Pieces = []model.Piece{
		{ID: "p1:jarl", Type: model.PieceJarl, PlayerID: "p1", Position: hexgeom.Hex{Q: -2, R: 0}},
		{ID: "p2:jarl", Type: model.PieceJarl, PlayerID: "p2", Position: hexgeom.Hex{Q: 3, R: -3}},
		{ID: "p2:w1", Type: model.PieceWarrior, PlayerID: "p2", Position: hexgeom.Hex{Q: -1, R: 0}},
	}
	blockedDest := hexgeom.Hex{Q: -1, R: 0}

	moves, err := GetValidMoves(state, "p1:jarl")
	require.NoError(t, err)

	for _, m := range moves {
		assert.False(t, m.IsAttack && m.Destination == blockedDest,
			"a compression-blocked attack must never be enumerated as a valid move")
	}

	_, err = ValidateMove(state, "p1", "p1:jarl", blockedDest)
	require.Error(t, err)
	rerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrAttackBlocked, rerr.Kind)
}

func TestApplyMove_OutOfTurnMoveRejected(t *testing.T) {
	state := newTwoPlayerState(3)
	state.Pieces = []model.Piece{
		{ID: "p1:jarl", Type: model.PieceJarl, PlayerID: "p1", Position: hexgeom.Hex{Q: -1, R: 0}},
		{ID: "p2:jarl", Type: model.PieceJarl, PlayerID: "p2", Position: hexgeom.Hex{Q: 3, R: -3}},
	}

	_, _, err := ApplyMove(state, "p2", "p2:jarl", hexgeom.Hex{Q: 2, R: -3})
	require.Error(t, err)
	rerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrNotYourTurn, rerr.Kind)
}

func TestShouldTriggerStarvation(t *testing.T) {
	cases := map[int]bool{
		0: false, 9: false, 10: true, 11: false,
		14: false, 15: true, 20: true, 21: false,
	}
	for rounds, want := range cases {
		assert.Equal(t, want, ShouldTriggerStarvation(rounds), "rounds=%d", rounds)
	}
}

func TestApplyStarvationChoice_ResolvesWhenAllChosen(t *testing.T) {
	state := newTwoPlayerState(3)
	state.Phase = model.PhaseStarvation
	state.Pieces = []model.Piece{
		{ID: "p1:jarl", Type: model.PieceJarl, PlayerID: "p1", Position: hexgeom.Hex{Q: -3, R: 0}},
		{ID: "p1:w1", Type: model.PieceWarrior, PlayerID: "p1", Position: hexgeom.Hex{Q: -2, R: 0}},
		{ID: "p2:jarl", Type: model.PieceJarl, PlayerID: "p2", Position: hexgeom.Hex{Q: 3, R: -3}},
		{ID: "p2:w1", Type: model.PieceWarrior, PlayerID: "p2", Position: hexgeom.Hex{Q: 2, R: -3}},
	}
	state.StarvationCandidates = []model.StarvationCandidate{
		{PlayerID: "p1", PieceIDs: []string{"p1:w1"}},
		{PlayerID: "p2", PieceIDs: []string{"p2:w1"}},
	}

	mid, events, err := ApplyStarvationChoice(state, "p1", "p1:w1")
	require.NoError(t, err)
	assert.Empty(t, events, "round shouldn't resolve until every candidate has chosen")
	assert.Equal(t, model.PhaseStarvation, mid.Phase)

	final, events, err := ApplyStarvationChoice(mid, "p2", "p2:w1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.PhasePlaying, final.Phase)
	assert.Equal(t, 0, final.RoundsSinceElimination)

	_, stillThere := final.PieceByID("p1:w1")
	assert.False(t, stillThere)
	_, stillThere2 := final.PieceByID("p2:w1")
	assert.False(t, stillThere2)
}

func TestApplyStarvationChoice_RejectsDoubleChoice(t *testing.T) {
	// Two candidates still pending, so the round doesn't resolve after
	// p1's first choice and a second submission from p1 is rejected.
	state := newTwoPlayerState(3)
	state.Phase = model.PhaseStarvation
	state.Pieces = []model.Piece{
		{ID: "p1:jarl", Type: model.PieceJarl, PlayerID: "p1", Position: hexgeom.Hex{Q: -3, R: 0}},
		{ID: "p1:w1", Type: model.PieceWarrior, PlayerID: "p1", Position: hexgeom.Hex{Q: -2, R: 0}},
		{ID: "p2:jarl", Type: model.PieceJarl, PlayerID: "p2", Position: hexgeom.Hex{Q: 3, R: -3}},
		{ID: "p2:w1", Type: model.PieceWarrior, PlayerID: "p2", Position: hexgeom.Hex{Q: 2, R: -3}},
	}
	state.StarvationCandidates = []model.StarvationCandidate{
		{PlayerID: "p1", PieceIDs: []string{"p1:w1"}},
		{PlayerID: "p2", PieceIDs: []string{"p2:w1"}},
	}

	next, _, err := ApplyStarvationChoice(state, "p1", "p1:w1")
	require.NoError(t, err)
	require.Equal(t, model.PhaseStarvation, next.Phase, "round should still be pending p2's choice")

	_, _, err = ApplyStarvationChoice(next, "p1", "p1:w1")
	require.Error(t, err)
	rerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrAlreadyChosen, rerr.Kind)
}
