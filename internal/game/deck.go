// apps/go-server/internal/game/deck.go
//
// Deck construction: one pair per symbol, shuffled with Fisher–Yates.

package game

import "math/rand/v2"

// NewDeck builds one pair of cards per symbol and shuffles them.
// Symbol i gets ids 2i and 2i+1. A nil rng uses the package-level source.
func NewDeck(alphabet []string, rng *rand.Rand) []Card {
	cards := make([]Card, 0, 2*len(alphabet))
	for i, v := range alphabet {
		cards = append(cards,
			Card{ID: 2 * i, Value: v},
			Card{ID: 2*i + 1, Value: v},
		)
	}
	Shuffle(cards, rng)
	return cards
}

// Shuffle permutes cards in place with Fisher–Yates.
func Shuffle(cards []Card, rng *rand.Rand) {
	swap := func(i, j int) { cards[i], cards[j] = cards[j], cards[i] }
	if rng == nil {
		rand.Shuffle(len(cards), swap)
		return
	}
	rng.Shuffle(len(cards), swap)
}
