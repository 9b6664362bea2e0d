package power

import (
	"github.com/mcoot/towers-go/internal/dependencies/random"
	"github.com/mcoot/towers-go/internal/engine/board"
)

// Charge thresholds per letter, and the cleared-block interval between diamonds
const (
	ChargeMinor  = 6
	ChargeNormal = 12
	ChargeMega   = 18
	DiamondEvery = 40
)

// Charger counts cleared letters and powers up the next landing block of a charged letter.
// Powers alternate between attack and defense for each letter, starting with attack.
type Charger struct {
	rnd     random.Random
	charge  map[byte]int
	next    map[byte]board.PowerType
	cleared int
	offered int
	pending int
}

var _ board.PowerManager = (*Charger)(nil)

// NewCharger returns a charger with no accumulated charge
func NewCharger(rnd random.Random) *Charger {
	return &Charger{
		rnd:    rnd,
		charge: make(map[byte]int),
		next:   make(map[byte]board.PowerType),
	}
}

// Decorate powers up b if its letter is charged
func (c *Charger) Decorate(b board.Block) board.Block {
	if !b.IsLetter() || b.IsPowered() {
		return b
	}
	lvl := levelFor(c.charge[b.Letter])
	if lvl == board.LevelNone {
		return b
	}
	t := c.next[b.Letter]
	if t == board.PowerNone {
		t = board.PowerAttack
	}
	if t == board.PowerAttack {
		c.next[b.Letter] = board.PowerDefense
	} else {
		c.next[b.Letter] = board.PowerAttack
	}
	c.charge[b.Letter] = 0
	return board.PoweredBlock(b.Letter, t, lvl)
}

// Observe accumulates charge from cleared blocks
func (c *Charger) Observe(cleared []board.Block) {
	for _, b := range cleared {
		if b.IsLetter() {
			c.charge[b.Letter]++
		}
	}
	c.cleared += len(cleared)
	for c.cleared/DiamondEvery > c.offered {
		c.offered++
		c.pending++
	}
}

// Charge returns the current charge of a letter
func (c *Charger) Charge(letter byte) int { return c.charge[letter] }

// TakeDiamond returns the special for an earned diamond, if one is waiting
func (c *Charger) TakeDiamond() (board.Special, bool) {
	if c.pending == 0 {
		return board.SpecialNone, false
	}
	c.pending--
	return board.Special(1 + c.rnd.Intn(3)), true
}

func levelFor(charge int) board.PowerLevel {
	switch {
	case charge >= ChargeMega:
		return board.LevelMega
	case charge >= ChargeNormal:
		return board.LevelNormal
	case charge >= ChargeMinor:
		return board.LevelMinor
	default:
		return board.LevelNone
	}
}
