package power

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcoot/towers-go/internal/dependencies/mocks"
	"github.com/mcoot/towers-go/internal/engine/board"
)

func clearLetters(c *Charger, letter byte, n int) {
	blocks := make([]board.Block, n)
	for i := range blocks {
		blocks[i] = board.LetterBlock(letter)
	}
	c.Observe(blocks)
}

func TestChargerLeavesUnchargedLettersAlone(t *testing.T) {
	c := NewCharger(mocks.NewMockRandom())
	clearLetters(c, 'T', ChargeMinor-1)

	b := c.Decorate(board.LetterBlock('T'))
	assert.False(t, b.IsPowered())
}

func TestChargerLevels(t *testing.T) {
	tests := []struct {
		name    string
		cleared int
		want    board.PowerLevel
	}{
		{"minor", ChargeMinor, board.LevelMinor},
		{"normal", ChargeNormal, board.LevelNormal},
		{"mega", ChargeMega + 5, board.LevelMega},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCharger(mocks.NewMockRandom())
			clearLetters(c, 'W', tt.cleared)

			b := c.Decorate(board.LetterBlock('W'))
			assert.Equal(t, tt.want, b.Level)
			assert.Equal(t, 0, c.Charge('W'))
		})
	}
}

func TestChargerAlternatesAttackAndDefense(t *testing.T) {
	c := NewCharger(mocks.NewMockRandom())

	clearLetters(c, 'E', ChargeMinor)
	first := c.Decorate(board.LetterBlock('E'))
	clearLetters(c, 'E', ChargeMinor)
	second := c.Decorate(board.LetterBlock('E'))
	clearLetters(c, 'E', ChargeMinor)
	third := c.Decorate(board.LetterBlock('E'))

	assert.Equal(t, board.PowerAttack, first.Power)
	assert.Equal(t, board.PowerDefense, second.Power)
	assert.Equal(t, board.PowerAttack, third.Power)
}

func TestChargerChargesPerLetter(t *testing.T) {
	c := NewCharger(mocks.NewMockRandom())
	clearLetters(c, 'R', ChargeMinor)

	assert.False(t, c.Decorate(board.LetterBlock('S')).IsPowered())
	assert.True(t, c.Decorate(board.LetterBlock('R')).IsPowered())
}

func TestChargerOffersDiamonds(t *testing.T) {
	rnd := mocks.NewMockRandom()
	rnd.QueueIntn(2)
	c := NewCharger(rnd)

	_, ok := c.TakeDiamond()
	assert.False(t, ok)

	clearLetters(c, 'T', DiamondEvery)
	special, ok := c.TakeDiamond()
	assert.True(t, ok)
	assert.Equal(t, board.SpecialRemoveStones, special)

	_, ok = c.TakeDiamond()
	assert.False(t, ok)
}
