package table

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/paulhankin/poker"
)

// NewDeck returns the 52 cards shuffled with r, or with the global source
// when r is nil.
func NewDeck(r *rand.Rand) []poker.Card {
	deck := make([]poker.Card, len(poker.Cards))
	copy(deck, poker.Cards)

	shuffle := rand.Shuffle
	if r != nil {
		shuffle = r.Shuffle
	}
	shuffle(
		len(deck),
		func(i, j int) {
			deck[i], deck[j] = deck[j], deck[i]
		},
	)

	return deck
}

// ParseCards reads names like "HA" or "C8", comma or space separated.
func ParseCards(s string) ([]poker.Card, error) {
	fields := strings.FieldsFunc(
		s,
		func(r rune) bool {
			return r == ',' || r == ' '
		},
	)

	cards := make([]poker.Card, 0, len(fields))
	for _, name := range fields {
		card, found := poker.NameToCard[strings.ToUpper(name)]
		if !found {
			return nil, fmt.Errorf("unknown card %q", name)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// MustParseCards panics on a bad name, for fixtures.
func MustParseCards(s string) []poker.Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}

func FormatCards(cards []poker.Card) string {
	if len(cards) == 0 {
		return "-"
	}

	names := make([]string, len(cards))
	for i, card := range cards {
		names[i] = card.String()
	}
	return strings.Join(names, " ")
}
