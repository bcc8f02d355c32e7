package table

import (
	"github.com/paulhankin/poker"
)

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Chips      int64 `json:"chips"`
	CurrentBet int64 `json:"current_bet"` // this phase
	TotalBet   int64 `json:"total_bet"`   // this hand

	Folded bool         `json:"folded"`
	AllIn  bool         `json:"all_in"`
	Hole   []poker.Card `json:"hole"`

	// false for a spectator seated mid-hand or without chips
	Active bool `json:"active"`
	// unseated mid-hand, removed at the next deal
	Left bool `json:"left"`
}

func NewPlayer(id string, name string, chips int64) *Player {
	if name == "" {
		name = id
	}
	return &Player{
		ID:     id,
		Name:   name,
		Chips:  chips,
		Active: true,
	}
}

func (p *Player) resetForNewHand() {
	p.CurrentBet = 0
	p.TotalBet = 0
	p.Folded = false
	p.AllIn = false
	p.Hole = nil
	p.Active = true
}

// contending players can still win the pot
func (p *Player) contending() bool {
	return p.Active && !p.Folded
}

// acting players can still be asked for a decision
func (p *Player) acting() bool {
	return p.contending() && !p.AllIn
}

// pay moves up to amount into the bet and returns what was actually paid.
func (p *Player) pay(amount int64) int64 {
	if amount > p.Chips {
		amount = p.Chips
	}
	p.Chips -= amount
	p.CurrentBet += amount
	p.TotalBet += amount
	if p.Chips == 0 {
		p.AllIn = true
	}
	return amount
}

func (p *Player) clone() *Player {
	c := *p
	if p.Hole != nil {
		c.Hole = append([]poker.Card(nil), p.Hole...)
	}
	return &c
}
