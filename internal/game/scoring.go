package game

import (
	"maps"
	"slices"
)

// Individual reports whether every seat plays for itself at a table of more
// than two.
func (m *Match) Individual() bool {
	return len(m.TurnOrder) > 2 && len(m.Teams()) == len(m.TurnOrder)
}

// EndRound scores the round. Only the match authority may call it; everyone
// else queues an EndRoundRequest.
func (m *Match) EndRound(method Method, winningSeatID string) (RoundResult, []Event, error) {
	if m.Phase != PhasePlaying {
		return RoundResult{}, nil, illegal(winningSeatID, "cannot end a round in phase %s", m.Phase)
	}

	var result RoundResult
	switch method {
	case MethodDomino:
		if !m.HasSeat(winningSeatID) {
			return RoundResult{}, nil, illegal(winningSeatID, "unknown seat")
		}
		if len(m.Hands[winningSeatID]) != 0 {
			return RoundResult{}, nil, illegal(winningSeatID, "still holds %d tiles", len(m.Hands[winningSeatID]))
		}
		result = m.scoreDomino(winningSeatID)
	case MethodBlocked:
		if m.Individual() {
			result = m.scoreBlockedIndividual()
		} else {
			result = m.scoreBlockedTeams()
		}
	default:
		return RoundResult{}, nil, illegal(winningSeatID, "unknown end method %q", method)
	}

	if m.TeamScores == nil {
		m.TeamScores = make(map[string]int)
	}
	m.TeamScores[result.Team] += result.Score
	m.RoundWinner = &result
	m.EndRoundRequest = nil

	events := []Event{}
	if m.TeamScores[result.Team] >= m.ScoreToWin {
		m.Phase = PhaseGameOver
		m.MatchWinner = result.Team
		events = append(events,
			RoundEndEvent{Result: result, TeamScores: maps.Clone(m.TeamScores), Phase: m.Phase},
			MatchOverEvent{Winner: result.Team, TeamScores: maps.Clone(m.TeamScores)},
		)
		return result, events, nil
	}
	m.Phase = PhaseRoundOver
	events = append(events, RoundEndEvent{Result: result, TeamScores: maps.Clone(m.TeamScores), Phase: m.Phase})
	return result, events, nil
}

// RequestEndRound files an end-round request for the authority to score.
// Only one request can be pending.
func (m *Match) RequestEndRound(method Method, winningSeatID string) error {
	if m.Phase != PhasePlaying {
		return illegal(winningSeatID, "cannot end a round in phase %s", m.Phase)
	}
	if m.EndRoundRequest != nil {
		return illegal(winningSeatID, "round end already requested")
	}
	if method != MethodDomino && method != MethodBlocked {
		return illegal(winningSeatID, "unknown end method %q", method)
	}
	m.queueEndRound(method, winningSeatID)
	return nil
}

// ResolveEndRoundRequest consumes a queued request exactly once. ok is false
// when the mailbox is empty.
func (m *Match) ResolveEndRoundRequest() (result RoundResult, events []Event, ok bool, err error) {
	if m.EndRoundRequest == nil {
		return RoundResult{}, nil, false, nil
	}
	req := *m.EndRoundRequest
	result, events, err = m.EndRound(req.Method, req.WinningSeatID)
	if err != nil {
		// A stale request must not wedge the mailbox.
		m.EndRoundRequest = nil
		return RoundResult{}, nil, true, err
	}
	return result, events, true, nil
}

// ClaimPayout marks the payout as attempted. It reports false once any seat
// has claimed it, so a pot is sent at most once and never retried.
func (m *Match) ClaimPayout() bool {
	if m.PayoutAttempted || m.PayoutProcessed {
		return false
	}
	m.PayoutAttempted = true
	return true
}

// RecordPayout stores a successful transfer. Only the first record sticks.
func (m *Match) RecordPayout(tx string) bool {
	if m.PayoutProcessed {
		return false
	}
	m.PayoutAttempted = true
	m.PayoutProcessed = true
	m.PayoutTx = tx
	return true
}

// RecordPayoutFailure stores why the claimed transfer failed.
func (m *Match) RecordPayoutFailure(reason string) {
	if m.PayoutProcessed {
		return
	}
	m.PayoutAttempted = true
	m.PayoutError = reason
}

func (m *Match) scoreDomino(winner string) RoundResult {
	if m.Individual() {
		score := 0
		for _, id := range m.TurnOrder {
			if id != winner {
				score += m.Hands[id].Pips()
			}
		}
		return RoundResult{Team: m.Players[winner].Team, SeatID: winner, Score: score, Method: MethodDomino}
	}
	team := m.Players[winner].Team
	score := 0
	for _, id := range m.TurnOrder {
		if m.Players[id].Team != team {
			score += m.Hands[id].Pips()
		}
	}
	return RoundResult{Team: team, SeatID: winner, Score: score, Method: MethodDomino}
}

// scoreBlockedTeams awards the round to the lighter team, ties going to the
// first team alphabetically. The winner scores what the other teams hold.
func (m *Match) scoreBlockedTeams() RoundResult {
	totals := make(map[string]int)
	for _, id := range m.TurnOrder {
		totals[m.Players[id].Team] += m.Hands[id].Pips()
	}
	teams := slices.Sorted(maps.Keys(totals))
	winner := teams[0]
	for _, t := range teams[1:] {
		if totals[t] < totals[winner] {
			winner = t
		}
	}
	score := 0
	for _, t := range teams {
		if t != winner {
			score += totals[t]
		}
	}
	return RoundResult{Team: winner, Score: score, Method: MethodBlocked}
}

func (m *Match) scoreBlockedIndividual() RoundResult {
	winner := m.TurnOrder[0]
	for _, id := range m.TurnOrder[1:] {
		if m.Hands[id].Pips() < m.Hands[winner].Pips() {
			winner = id
		}
	}
	score := 0
	for _, id := range m.TurnOrder {
		if id != winner {
			score += m.Hands[id].Pips()
		}
	}
	return RoundResult{Team: m.Players[winner].Team, SeatID: winner, Score: score, Method: MethodBlocked}
}
