package board

// Letters is the alphabet pieces are drawn from
const Letters = "TOWERS"

// Kind identifies what occupies a cell
type Kind uint8

const (
	KindEmpty Kind = iota
	KindLetter
	KindStone
	KindMedusa
	KindMidas
	KindDiamond
)

// PowerType says whether a powered block helps its owner or hurts an opponent
type PowerType uint8

const (
	PowerNone PowerType = iota
	PowerAttack
	PowerDefense
)

// PowerLevel is the strength of a powered block
type PowerLevel uint8

const (
	LevelNone PowerLevel = iota
	LevelMinor
	LevelNormal
	LevelMega
)

// Special is the effect carried by a diamond block
type Special uint8

const (
	SpecialNone Special = iota
	SpecialSpeedDrop
	SpecialRemovePowers
	SpecialRemoveStones
)

// Block is a single cell value
type Block struct {
	Kind    Kind
	Letter  byte
	Power   PowerType
	Level   PowerLevel
	Special Special
}

// Empty returns an empty cell
func Empty() Block { return Block{} }

// LetterBlock returns a plain letter block
func LetterBlock(l byte) Block { return Block{Kind: KindLetter, Letter: l} }

// PoweredBlock returns a letter block carrying a power
func PoweredBlock(l byte, t PowerType, lvl PowerLevel) Block {
	return Block{Kind: KindLetter, Letter: l, Power: t, Level: lvl}
}

// Stone returns an inert stone block
func Stone() Block { return Block{Kind: KindStone} }

// Diamond returns a diamond block carrying a special effect
func Diamond(s Special) Block { return Block{Kind: KindDiamond, Special: s} }

// IsEmpty reports whether the cell is unoccupied
func (b Block) IsEmpty() bool { return b.Kind == KindEmpty }

// IsLetter reports whether the cell holds a letter
func (b Block) IsLetter() bool { return b.Kind == KindLetter }

// IsPowered reports whether the block is a letter carrying a power, i.e. it belongs in a power bar once cleared
func (b Block) IsPowered() bool { return b.Kind == KindLetter && b.Power != PowerNone }

// Defused returns the block with any power removed
func (b Block) Defused() Block {
	b.Power = PowerNone
	b.Level = LevelNone
	return b
}

func (k Kind) String() string {
	switch k {
	case KindLetter:
		return "letter"
	case KindStone:
		return "stone"
	case KindMedusa:
		return "medusa"
	case KindMidas:
		return "midas"
	case KindDiamond:
		return "diamond"
	default:
		return "empty"
	}
}

func (t PowerType) String() string {
	switch t {
	case PowerAttack:
		return "attack"
	case PowerDefense:
		return "defense"
	default:
		return ""
	}
}

func (l PowerLevel) String() string {
	switch l {
	case LevelMinor:
		return "minor"
	case LevelNormal:
		return "normal"
	case LevelMega:
		return "mega"
	default:
		return ""
	}
}

func (s Special) String() string {
	switch s {
	case SpecialSpeedDrop:
		return "speed_drop"
	case SpecialRemovePowers:
		return "remove_powers"
	case SpecialRemoveStones:
		return "remove_stones"
	default:
		return ""
	}
}
