// Package game implements the dominoes match state machine.
//
// The main type is Match, the shared record every seat controller reads and
// writes through the store. It holds the seats, the hands, the boneyard, the
// board history, and the team scores of a match from the waiting room to its
// final round.
//
// # Basic Usage
//
// Open a match from a room template, seat players, and deal:
//
//	m := game.NewMatch(id, room)
//	m.Players["alice"] = game.Player{ID: "alice", IsConnected: true}
//	m.Players["bob"] = game.Player{ID: "bob", IsConnected: true}
//	events, err := m.Start(rng)
//
// Moves are validated against the current seat and the open ends:
//
//	events, err = m.Play("alice", tile, domino.PlaceLeft)
//	events, err = m.Draw("bob", m.Boneyard[0])
//	events, err = m.Pass("bob")
//
// A move that finishes the round only queues an EndRoundRequest. The match
// authority scores it with ResolveEndRoundRequest, and NextRound deals the
// next round once the phase is PhaseRoundOver.
//
// # Deterministic Testing
//
// Every shuffle takes a *rand.Rand, so a fixed seed replays a match exactly:
//
//	rng := randutil.New(42)
//	events, err := m.Start(rng)
//
// # Events
//
// Transitions return Events describing what happened. Callers publish them on
// an EventBus after the write that produced them has committed.
package game
