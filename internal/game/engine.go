// apps/go-server/internal/game/engine.go
//
// Core engine for a single Memory game.
// Responsibilities:
//   - Build a shuffled pair deck from the configured alphabet.
//   - Apply flips through the idle → one_flipped → resolving state machine.
//   - Resolve matches synchronously; flip mismatches back after a fixed delay.
//   - Detect the win and tell the host exactly once.
//   - Reset (new deck, counters cleared) and manual exit.
//
// Notes:
//   - The mismatch flip-back runs on a scheduler goroutine, so all state sits
//     behind mu. OnChange and OnEnd are always called with mu released.
//   - Every mutation holds ops from the state change through its OnChange and
//     OnEnd calls, so hosts see notifications in the order the changes were
//     made. Callbacks may read the game but must not mutate it.
//   - Every deferred flip-back captures the epoch it was scheduled in. Reset and
//     Exit bump the epoch, so a callback that was already in flight is a no-op.
//   - Illegal flips (card face up, matched, unknown, input locked, game over)
//     are ignored rather than reported as errors.
package game

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMismatchDelay is how long a mismatched pair stays face up.
	DefaultMismatchDelay = 1500 * time.Millisecond

	// CompletionMessage is shown to the player when the last pair is found.
	CompletionMessage = "Congratulations! You matched all pairs!"
)

// Options configure a Game. The zero value is usable.
type Options struct {
	MismatchDelay time.Duration
	Scheduler     Scheduler
	Rand          *rand.Rand // nil uses the package-level source

	// OnChange receives a snapshot after every state change, including the
	// deferred flip-back.
	OnChange func(Snapshot)

	// OnEnd is the host's end-of-game hook. It fires once when the board is
	// cleared, or once on Exit. An exited game never fires it again.
	OnEnd func(EndReason)
}

// Game holds the state of one mounted Memory game.
type Game struct {
	ID        string
	CreatedAt time.Time

	ops        sync.Mutex // serialises mutations with their notifications
	mu         sync.Mutex
	opts       Options
	alphabet   []string
	cards      []Card
	unresolved []int
	matches    int
	locked     bool
	finished   bool
	exited     bool
	message    string
	epoch      uint64
	pending    Timer
}

// New constructs a game over alphabet with a freshly shuffled deck.
func New(alphabet []string, opts Options) *Game {
	if opts.MismatchDelay <= 0 {
		opts.MismatchDelay = DefaultMismatchDelay
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	g := &Game{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		opts:      opts,
		alphabet:  append([]string(nil), alphabet...),
	}
	g.cards = NewDeck(g.alphabet, opts.Rand)
	return g
}

// Flip handles a click on the card with the given id.
func (g *Game) Flip(cardID int) Outcome {
	g.ops.Lock()
	defer g.ops.Unlock()

	g.mu.Lock()
	out := g.flipLocked(cardID)
	snap := g.snapshotLocked()
	g.mu.Unlock()

	if out == OutcomeIgnored {
		return out
	}
	g.notify(snap)
	if out == OutcomeWon {
		g.end(EndWon)
	}
	return out
}

func (g *Game) flipLocked(cardID int) Outcome {
	if g.finished || g.locked {
		return OutcomeIgnored
	}
	c := g.cardLocked(cardID)
	if c == nil || c.Flipped || c.Matched {
		return OutcomeIgnored
	}

	c.Flipped = true
	g.unresolved = append(g.unresolved, c.ID)
	if len(g.unresolved) < 2 {
		return OutcomeFlipped
	}
	g.locked = true
	return g.resolveLocked()
}

// resolveLocked compares the two unresolved cards.
func (g *Game) resolveLocked() Outcome {
	a := g.cardLocked(g.unresolved[0])
	b := g.cardLocked(g.unresolved[1])

	if a.Value == b.Value {
		a.Matched, b.Matched = true, true
		g.matches++
		g.unresolved = nil
		g.locked = false
		if g.matches == len(g.alphabet) {
			g.finished = true
			g.message = CompletionMessage
			return OutcomeWon
		}
		return OutcomeMatched
	}

	epoch := g.epoch
	g.pending = g.opts.Scheduler.AfterFunc(g.opts.MismatchDelay, func() {
		g.settleMismatch(epoch)
	})
	return OutcomeMismatched
}

// settleMismatch turns a mismatched pair face down again.
// It does nothing if the game was reset or exited since it was scheduled.
func (g *Game) settleMismatch(epoch uint64) {
	g.ops.Lock()
	defer g.ops.Unlock()

	g.mu.Lock()
	if epoch != g.epoch || !g.locked {
		g.mu.Unlock()
		return
	}
	for _, id := range g.unresolved {
		if c := g.cardLocked(id); c != nil {
			c.Flipped = false
		}
	}
	g.unresolved = nil
	g.locked = false
	g.pending = nil
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.notify(snap)
}

// Reset discards the board and deals a new shuffled deck.
// A pending mismatch flip-back is cancelled. Reset does nothing once the game
// has been exited.
func (g *Game) Reset() {
	g.ops.Lock()
	defer g.ops.Unlock()

	g.mu.Lock()
	if g.exited {
		g.mu.Unlock()
		return
	}
	g.cancelPendingLocked()
	g.cards = NewDeck(g.alphabet, g.opts.Rand)
	g.unresolved = nil
	g.matches = 0
	g.locked = false
	g.finished = false
	g.message = ""
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.notify(snap)
}

// Exit ends the game early. It reports false if the game had already ended.
func (g *Game) Exit() bool { return g.ExitWith(EndExited) }

// ExitWith ends the game early and hands reason to OnEnd. Only the call that
// actually ends the game reaches OnEnd.
func (g *Game) ExitWith(reason EndReason) bool {
	g.ops.Lock()
	defer g.ops.Unlock()

	g.mu.Lock()
	if g.finished {
		g.mu.Unlock()
		return false
	}
	g.cancelPendingLocked()
	g.finished = true
	g.exited = true
	g.mu.Unlock()

	g.end(reason)
	return true
}

// Watch calls fn with the current snapshot. No OnChange notification can be
// delivered while fn runs, so a subscriber registered inside fn sees every
// change made after that snapshot.
func (g *Game) Watch(fn func(Snapshot)) {
	g.ops.Lock()
	defer g.ops.Unlock()
	fn(g.Snapshot())
}

func (g *Game) cancelPendingLocked() {
	g.epoch++
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
}

func (g *Game) notify(s Snapshot) {
	if g.opts.OnChange != nil {
		g.opts.OnChange(s)
	}
}

func (g *Game) end(reason EndReason) {
	if g.opts.OnEnd != nil {
		g.opts.OnEnd(reason)
	}
}

func (g *Game) cardLocked(id int) *Card {
	for i := range g.cards {
		if g.cards[i].ID == id {
			return &g.cards[i]
		}
	}
	return nil
}

// Phase reports the current state machine phase.
func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phaseLocked()
}

func (g *Game) phaseLocked() Phase {
	switch {
	case g.locked:
		return PhaseResolving
	case len(g.unresolved) == 1:
		return PhaseOneFlipped
	default:
		return PhaseIdle
	}
}

// Matches is the number of pairs found this round.
func (g *Game) Matches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.matches
}

// Pairs is the number of pairs on the board.
func (g *Game) Pairs() int { return len(g.alphabet) }

// Finished reports whether the round was won or exited.
func (g *Game) Finished() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finished
}

// Cards returns a copy of the deck in render order, face values included.
func (g *Game) Cards() []Card {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Card(nil), g.cards...)
}

// Snapshot returns the client view of the game.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) snapshotLocked() Snapshot {
	views := make([]CardView, len(g.cards))
	for i, c := range g.cards {
		views[i] = CardView{ID: c.ID, Flipped: c.Flipped, Matched: c.Matched}
		if c.Flipped || c.Matched {
			views[i].Value = c.Value
		}
	}
	return Snapshot{
		GameID:     g.ID,
		Phase:      g.phaseLocked(),
		Cards:      views,
		Unresolved: append([]int{}, g.unresolved...),
		Matches:    g.matches,
		Pairs:      len(g.alphabet),
		Locked:     g.locked,
		Finished:   g.finished,
		Message:    g.message,
		Epoch:      g.epoch,
	}
}
