package board

// PieceSize is the number of blocks in a falling piece
const PieceSize = 3

// Piece is a vertical column of blocks; index 0 is the top
type Piece struct {
	Blocks [PieceSize]Block
}

// NewLetterPiece builds a piece from three letters, top first
func NewLetterPiece(top, middle, bottom byte) Piece {
	return Piece{Blocks: [PieceSize]Block{LetterBlock(top), LetterBlock(middle), LetterBlock(bottom)}}
}

// MedusaPiece returns a piece that petrifies its neighbours on landing
func MedusaPiece() Piece {
	return Piece{Blocks: [PieceSize]Block{{Kind: KindMedusa}, {Kind: KindMedusa}, {Kind: KindMedusa}}}
}

// MidasPiece returns a piece that clears its neighbours on landing
func MidasPiece() Piece {
	return Piece{Blocks: [PieceSize]Block{{Kind: KindMidas}, {Kind: KindMidas}, {Kind: KindMidas}}}
}

// DiamondPiece returns a letter piece whose bottom block is replaced by a diamond
func DiamondPiece(top, middle byte, s Special) Piece {
	return Piece{Blocks: [PieceSize]Block{LetterBlock(top), LetterBlock(middle), Diamond(s)}}
}

// Cycle rotates the block order downward: the bottom block moves to the top
func (p *Piece) Cycle() {
	last := p.Blocks[PieceSize-1]
	copy(p.Blocks[1:], p.Blocks[:PieceSize-1])
	p.Blocks[0] = last
}
