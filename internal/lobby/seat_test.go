package lobby

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/settlement"
	"github.com/lox/dominoes/internal/store"
)

func TestFullTableStartsImmediately(t *testing.T) {
	h := newHarness(t)
	m, err := h.lobby.FindOrCreate(h.ctx, room1v1, seat("0xa"))
	require.NoError(t, err)
	_, err = h.lobby.Admit(h.ctx, m.ID, seat("0xb"))
	require.NoError(t, err)

	h.run(h.attach(m.ID, "0xa"))

	got := h.waitFor(m.ID, func(m *game.Match) bool { return m.Phase == game.PhasePlaying }, "full table should start")
	assert.Equal(t, 1, got.Round)
	assert.Len(t, got.Hands["0xa"], 5)
	assert.Len(t, got.Hands["0xb"], 5)
	assert.Equal(t, domino.SetSize, got.TileCount())
	assert.True(t, got.MatchmakingDeadline.IsZero())
}

func TestCountdownStartsPartialTable(t *testing.T) {
	h := newHarness(t)
	m, err := h.lobby.FindOrCreate(h.ctx, room2v2, seat("0xa"))
	require.NoError(t, err)
	_, err = h.lobby.Admit(h.ctx, m.ID, seat("0xb"))
	require.NoError(t, err)

	host := h.attach(m.ID, "0xa")
	h.run(host)

	waiting := h.waitFor(m.ID, func(m *game.Match) bool { return !m.MatchmakingDeadline.IsZero() }, "countdown should open")
	assert.Equal(t, h.clock.Now().Add(h.lobby.Config().MatchmakingTimeout), waiting.MatchmakingDeadline)
	h.waitPending(host, timerCountdown)

	h.fire(h.lobby.Config().MatchmakingTimeout)

	got := h.waitFor(m.ID, func(m *game.Match) bool { return m.Phase == game.PhasePlaying }, "countdown should start the match")
	assert.Equal(t, []string{"0xa", "0xb"}, got.SeatIDs())
	assert.Len(t, got.TurnOrder, 2)
	assert.True(t, got.MatchmakingDeadline.IsZero())
}

func TestAISeatMovesAfterThinkTime(t *testing.T) {
	h := newHarness(t)
	m := h.table(game.Mode1v1, "6-6", "AI_1", map[string][]string{
		"0xa":  {"1-3", "4-4"},
		"AI_1": {"6-1", "2-2"},
	})
	host := h.attach(m.ID, "0xa")
	h.run(host)

	h.waitPending(host, timerAI)
	assert.Len(t, h.match(m.ID).Board, 1, "fallback seat must wait before moving")

	h.fire(h.lobby.Config().AIThinkTime)
	got := h.waitFor(m.ID, func(m *game.Match) bool { return len(m.Board) == 2 }, "fallback seat should play")
	assert.Equal(t, [2]int{1, 6}, got.BoardEnds)
	assert.Equal(t, "0xa", got.CurrentSeatID)
	assert.Len(t, got.Hands["AI_1"], 1)

	// The human's own clock passes for it.
	h.waitPending(host, timerTurn)
	h.fire(h.lobby.Config().TurnTimeout)
	got = h.waitFor(m.ID, func(m *game.Match) bool { return m.ConsecutivePasses == 1 }, "timed out turn should pass")
	assert.Equal(t, "AI_1", got.CurrentSeatID)
}

func TestDisconnectedSeatIsPlayedByHost(t *testing.T) {
	h := newHarness(t)
	m := h.table(game.Mode1v1, "6-6", "0xb", map[string][]string{
		"0xa": {"1-3", "4-4"},
		"0xb": {"6-1", "2-2"},
	})
	host := h.attach(m.ID, "0xa")
	h.attach(m.ID, "0xb")
	h.run(host)

	require.NoError(t, h.store.Disconnect(h.ctx, "session-0xb"))
	assert.True(t, h.match(m.ID).AIControlled("0xb"))

	h.waitPending(host, timerAI)
	h.fire(h.lobby.Config().AIThinkTime)
	got := h.waitFor(m.ID, func(m *game.Match) bool { return len(m.Board) == 2 }, "host should move for the absent seat")
	assert.Equal(t, "0xa", got.CurrentSeatID)
}

func TestHostScoresOwnDominoInSameWrite(t *testing.T) {
	h := newHarness(t)
	m := h.table(game.Mode1v1, "6-6", "0xa", map[string][]string{
		"0xa": {"6-1"},
		"0xb": {"2-3", "4-4"},
	})
	host := h.attach(m.ID, "0xa")
	h.attach(m.ID, "0xb")

	require.NoError(t, host.Play(h.ctx, domino.MustParse("6-1"), domino.PlaceLeft))

	got := h.match(m.ID)
	assert.Equal(t, game.PhaseRoundOver, got.Phase)
	assert.Nil(t, got.EndRoundRequest)
	require.NotNil(t, got.RoundWinner)
	assert.Equal(t, game.RoundResult{Team: "A", SeatID: "0xa", Score: 13, Method: game.MethodDomino}, *got.RoundWinner)
	assert.Equal(t, 13, got.TeamScores["A"])
}

func TestNonHostDominoIsResolvedByHost(t *testing.T) {
	h := newHarness(t)
	m := h.table(game.Mode1v1, "6-6", "0xb", map[string][]string{
		"0xa": {"1-3", "4-4"},
		"0xb": {"6-2"},
	})
	host := h.attach(m.ID, "0xa")
	guest := h.attach(m.ID, "0xb")
	h.run(host)
	h.run(guest)

	require.NoError(t, guest.Play(h.ctx, domino.MustParse("6-2"), domino.PlaceRight))

	got := h.waitFor(m.ID, func(m *game.Match) bool { return m.Phase == game.PhaseRoundOver }, "host should score the round")
	assert.Nil(t, got.EndRoundRequest)
	require.NotNil(t, got.RoundWinner)
	assert.Equal(t, "0xb", got.RoundWinner.SeatID)
	assert.Equal(t, 12, got.TeamScores["B"])

	h.waitPending(host, timerNewRound)
	h.fire(h.lobby.Config().NewRoundDelay)
	next := h.waitFor(m.ID, func(m *game.Match) bool { return m.Round == 2 }, "host should deal the next round")
	assert.Equal(t, game.PhasePlaying, next.Phase)
	assert.Equal(t, 12, next.TeamScores["B"])
	assert.Equal(t, domino.SetSize, next.TileCount())
}

func TestNonHostEndRoundIsRelayed(t *testing.T) {
	h := newHarness(t)
	m := h.table(game.Mode1v1, "6-6", "0xa", map[string][]string{
		"0xa": {"1-3", "4-4"},
		"0xb": {"6-2"},
	})
	host := h.attach(m.ID, "0xa")
	guest := h.attach(m.ID, "0xb")

	require.NoError(t, guest.EndRound(h.ctx, game.MethodBlocked, ""))
	queued := h.match(m.ID)
	require.NotNil(t, queued.EndRoundRequest)
	assert.Equal(t, game.PhasePlaying, queued.Phase)

	err := host.Pass(h.ctx)
	assert.ErrorIs(t, err, game.ErrIllegalMove, "moves wait for the pending request")

	h.run(host)
	got := h.waitFor(m.ID, func(m *game.Match) bool { return m.Phase == game.PhaseRoundOver }, "host should resolve the request")
	assert.Equal(t, game.MethodBlocked, got.RoundWinner.Method)
	assert.Equal(t, "B", got.RoundWinner.Team)
}

func TestTurnIntentsValidateSeat(t *testing.T) {
	h := newHarness(t)
	m := h.table(game.Mode1v1, "6-6", "0xa", map[string][]string{
		"0xa": {"1-3", "4-4"},
		"0xb": {"6-2"},
	})
	host := h.attach(m.ID, "0xa")
	guest := h.attach(m.ID, "0xb")

	assert.ErrorIs(t, guest.Pass(h.ctx), game.ErrIllegalMove)
	assert.ErrorIs(t, host.Play(h.ctx, domino.MustParse("1-3"), domino.PlaceLeft), game.ErrIllegalMove)
	assert.Equal(t, m.Board, h.match(m.ID).Board)

	require.NoError(t, host.Draw(h.ctx))
	got := h.match(m.ID)
	assert.Len(t, got.Hands["0xa"], 3)
	assert.Equal(t, domino.SetSize, got.TileCount())
}

func TestLastDisconnectRemovesWaitingMatch(t *testing.T) {
	h := newHarness(t)
	m, err := h.lobby.FindOrCreate(h.ctx, room2v2, seat("0xa"))
	require.NoError(t, err)
	_, err = h.lobby.Admit(h.ctx, m.ID, seat("0xb"))
	require.NoError(t, err)
	h.attach(m.ID, "0xa")
	h.attach(m.ID, "0xb")

	require.NoError(t, h.store.Disconnect(h.ctx, "session-0xa"))
	got := h.match(m.ID)
	assert.False(t, got.Players["0xa"].IsConnected)
	assert.Equal(t, "0xb", got.HostID())

	require.NoError(t, h.store.Disconnect(h.ctx, "session-0xb"))
	_, err = h.store.Get(h.ctx, m.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDetachCancelsDisconnectHook(t *testing.T) {
	h := newHarness(t)
	m := h.table(game.Mode1v1, "6-6", "0xa", map[string][]string{
		"0xa": {"1-3", "4-4"},
		"0xb": {"6-2"},
	})
	s := h.attach(m.ID, "0xa")
	h.attach(m.ID, "0xb")

	require.NoError(t, s.Detach(h.ctx))
	assert.False(t, h.match(m.ID).Players["0xa"].IsConnected)
	assert.Equal(t, "0xb", h.match(m.ID).HostID())

	_, err := h.store.Update(h.ctx, m.ID, func(m *game.Match) error {
		m.SetConnected("0xa", true)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, h.store.Disconnect(h.ctx, "session-0xa"))
	assert.True(t, h.match(m.ID).Players["0xa"].IsConnected, "detached seat left no hook behind")
}

func cashTable(h *harness) *game.Match {
	h.t.Helper()
	m := h.table(game.Mode1v1, "6-6", "0xa", map[string][]string{
		"0xa": {"6-1"},
		"0xb": {"5-5", "4-4"},
	})
	_, err := h.store.Update(h.ctx, m.ID, func(m *game.Match) error {
		m.Kind = game.KindCash
		m.Bet = &game.Bet{Amount: 1, Currency: "USDC"}
		m.TeamScores["A"] = m.ScoreToWin - 5
		return nil
	})
	require.NoError(h.t, err)
	return m
}

func TestGameOverPaysTreasuryOnce(t *testing.T) {
	h := newHarness(t)
	m := cashTable(h)
	host := h.attach(m.ID, "0xa")
	h.attach(m.ID, "0xb")
	h.run(host)

	require.NoError(t, host.Play(h.ctx, domino.MustParse("6-1"), domino.PlaceLeft))

	got := h.waitFor(m.ID, func(m *game.Match) bool { return m.PayoutProcessed && m.ResultsRecorded }, "host should settle the match")
	assert.Equal(t, game.PhaseGameOver, got.Phase)
	assert.Equal(t, "A", got.MatchWinner)

	transfers := h.ledger.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, settlement.TreasuryAddress, transfers[0].To)
	assert.InDelta(t, 2.0, transfers[0].Amount, 1e-9)
	assert.Equal(t, "USDC", transfers[0].Currency)
	assert.Equal(t, transfers[0].TxID, got.PayoutTx)

	winner, err := h.profiles.Get(h.ctx, "0xa")
	require.NoError(t, err)
	assert.Equal(t, 1, winner.Wins)
	assert.InDelta(t, 2.0, winner.Earnings, 1e-9)
	loser, err := h.profiles.Get(h.ctx, "0xb")
	require.NoError(t, err)
	assert.Equal(t, 1, loser.Losses)
	assert.InDelta(t, -1.0, loser.Earnings, 1e-9)
}

func TestPayoutFailureKeepsResult(t *testing.T) {
	h := newHarness(t)
	h.ledger.FailWith(errors.New("rpc unavailable"))
	m := cashTable(h)
	host := h.attach(m.ID, "0xa")
	h.attach(m.ID, "0xb")
	h.run(host)

	require.NoError(t, host.Play(h.ctx, domino.MustParse("6-1"), domino.PlaceLeft))

	got := h.waitFor(m.ID, func(m *game.Match) bool { return m.ResultsRecorded }, "results should still be recorded")
	assert.Equal(t, game.PhaseGameOver, got.Phase)
	assert.Equal(t, "A", got.MatchWinner)
	assert.False(t, got.PayoutProcessed)
	assert.Empty(t, got.PayoutTx)
	assert.Empty(t, h.ledger.Transfers())
	assert.True(t, got.PayoutAttempted)
	assert.Equal(t, "rpc unavailable", h.waitFor(m.ID, func(m *game.Match) bool { return m.PayoutError != "" }, "failure should be recorded").PayoutError)
}

func TestNewHostDoesNotRetryFailedPayout(t *testing.T) {
	h := newHarness(t)
	h.ledger.FailWith(errors.New("rpc unavailable"))
	m := cashTable(h)
	host := h.attach(m.ID, "0xa")
	other := h.attach(m.ID, "0xb")
	h.run(host)

	require.NoError(t, host.Play(h.ctx, domino.MustParse("6-1"), domino.PlaceLeft))
	h.waitFor(m.ID, func(m *game.Match) bool { return m.PayoutError != "" && m.ResultsRecorded }, "host should settle the match")

	// The treasury recovers and the host hands over to the other seat.
	h.ledger.FailWith(nil)
	require.NoError(t, host.Detach(h.ctx))
	require.Equal(t, "0xb", h.match(m.ID).HostID())
	h.run(other)

	assert.Never(t, func() bool { return len(h.ledger.Transfers()) > 0 }, 200*time.Millisecond, waitTick, "payout must not be retried")
	got := h.match(m.ID)
	assert.False(t, got.PayoutProcessed)
	assert.Equal(t, "rpc unavailable", got.PayoutError)
}

func TestClaimedPayoutIsNotSentAgain(t *testing.T) {
	h := newHarness(t)
	m := cashTable(h)
	// A previous host claimed the payout and dropped before recording it.
	_, err := h.store.Update(h.ctx, m.ID, func(m *game.Match) error {
		m.ClaimPayout()
		return nil
	})
	require.NoError(t, err)
	host := h.attach(m.ID, "0xa")
	h.attach(m.ID, "0xb")
	h.run(host)

	require.NoError(t, host.Play(h.ctx, domino.MustParse("6-1"), domino.PlaceLeft))
	h.waitFor(m.ID, func(m *game.Match) bool { return m.ResultsRecorded }, "results should be recorded")
	assert.Empty(t, h.ledger.Transfers())
	assert.False(t, h.match(m.ID).PayoutProcessed)
}
