// apps/go-server/internal/game/types.go
//
// Core type definitions for the Memory game engine.
// Defines:
//   - Card: one face of a pair deck (identity, symbol, flipped/matched flags).
//   - Phase: where the flip state machine currently is.
//   - Outcome: what a single flip did.
//   - EndReason: why the host was told the game ended.
//   - Snapshot / CardView: the read-only view handed to clients.

package game

// Card is a single card on the board.
// A matched card stays flipped for the rest of the round.
type Card struct {
	ID      int    // Unique within the deck; pairs get consecutive ids.
	Value   string // Face symbol; exactly two cards share it.
	Flipped bool
	Matched bool
}

// Phase is the state of the flip state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"        // no unresolved cards, accepting input
	PhaseOneFlipped Phase = "one_flipped" // one unresolved card
	PhaseResolving  Phase = "resolving"   // two cards up, input locked
)

// Outcome reports the effect of a Flip call.
type Outcome string

const (
	OutcomeIgnored    Outcome = "ignored"
	OutcomeFlipped    Outcome = "flipped"
	OutcomeMatched    Outcome = "matched"
	OutcomeMismatched Outcome = "mismatched"
	OutcomeWon        Outcome = "won"
)

// EndReason is passed to the host's end-of-game callback.
type EndReason string

const (
	EndWon     EndReason = "won"
	EndExited  EndReason = "exited"
	EndExpired EndReason = "expired" // exited by the host's expiry sweep
)

// CardView is the client-facing form of a Card.
// Value is omitted while the card is face down.
type CardView struct {
	ID      int    `json:"id"`
	Value   string `json:"value,omitempty"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}

// Snapshot is a consistent copy of a game's state at one instant.
type Snapshot struct {
	GameID     string     `json:"gameId"`
	Phase      Phase      `json:"phase"`
	Cards      []CardView `json:"cards"`
	Unresolved []int      `json:"unresolved"`
	Matches    int        `json:"matches"`
	Pairs      int        `json:"pairs"`
	Locked     bool       `json:"locked"`
	Finished   bool       `json:"finished"`
	Message    string     `json:"message,omitempty"`
	Epoch      uint64     `json:"epoch"`
}
