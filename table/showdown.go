package table

import (
	"github.com/paulhankin/poker"
)

type hand struct {
	player *Player
	score  int16
	desc   string
}

func (t *Table) rank(p *Player) (hand, bool) {
	if len(p.Hole) != 2 || len(t.Community) != 5 {
		return hand{}, false
	}

	var cards [7]poker.Card
	copy(cards[:2], p.Hole)
	copy(cards[2:], t.Community)

	desc, err := poker.Describe(cards[:])
	if err != nil {
		desc = FormatCards(cards[:])
	}

	return hand{
		player: p,
		score:  poker.Eval7(&cards),
		desc:   desc,
	}, true
}

// showdown splits the pot between the best hands; an odd chip goes to the
// first winner in seat order.
func (t *Table) showdown(eff *Effect) {
	var best []hand
	for _, p := range t.Players {
		if !p.contending() {
			continue
		}

		h, ok := t.rank(p)
		if !ok {
			continue
		}
		eff.event("%s shows %s: %s", p.Name, FormatCards(p.Hole), h.desc)

		switch {
		case len(best) == 0 || h.score > best[0].score:
			best = []hand{h}
		case h.score == best[0].score:
			best = append(best, h)
		}
	}

	if len(best) == 0 {
		// cannot rank anyone, hand is void
		for _, p := range t.Players {
			p.Chips += p.TotalBet
		}
		eff.event("showdown without a complete board, bets returned")
		t.finish(eff)
		return
	}

	share := t.Pot / int64(len(best))
	odd := t.Pot % int64(len(best))
	for i, h := range best {
		won := share
		if i == 0 {
			won += odd
		}
		h.player.Chips += won
		eff.Winners = append(eff.Winners, h.player.ID)
		eff.event("%s wins %d with %s", h.player.Name, won, h.desc)
	}

	t.finish(eff)
}
