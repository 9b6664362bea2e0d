package board

// BlockView is the wire form of a cell
type BlockView struct {
	Kind    string `json:"kind"`
	Letter  string `json:"letter,omitempty"`
	Power   string `json:"power,omitempty"`
	Level   string `json:"level,omitempty"`
	Special string `json:"special,omitempty"`
}

// PieceView is the wire form of the falling piece; Row is relative to the first visible row
// and is negative while the piece is still inside the hidden rows
type PieceView struct {
	Row    int         `json:"row"`
	Col    int         `json:"col"`
	Blocks []BlockView `json:"blocks"`
}

// View is the projection of a board sent to clients. Hidden rows are omitted.
type View struct {
	Rows  [][]*BlockView `json:"rows"`
	Piece *PieceView     `json:"piece,omitempty"`
	Over  bool           `json:"over"`
}

// ViewOf converts a block; empty cells become nil
func ViewOf(b Block) *BlockView {
	if b.IsEmpty() {
		return nil
	}
	v := &BlockView{Kind: b.Kind.String(), Power: b.Power.String(), Level: b.Level.String(), Special: b.Special.String()}
	if b.IsLetter() {
		v.Letter = string(b.Letter)
	}
	return v
}

// PieceBlocks converts a piece's blocks, top first
func PieceBlocks(p Piece) []BlockView {
	out := make([]BlockView, 0, PieceSize)
	for _, b := range p.Blocks {
		if v := ViewOf(b); v != nil {
			out = append(out, *v)
		} else {
			out = append(out, BlockView{Kind: KindEmpty.String()})
		}
	}
	return out
}

// View returns the visible projection of the board
func (b *Board) View() View {
	v := View{Over: b.over, Rows: make([][]*BlockView, b.cfg.VisibleRows)}
	for r := 0; r < b.cfg.VisibleRows; r++ {
		row := make([]*BlockView, b.cfg.Cols)
		for c := 0; c < b.cfg.Cols; c++ {
			row[c] = ViewOf(b.grid.At(r+b.cfg.HiddenRows, c))
		}
		v.Rows[r] = row
	}
	if b.piece != nil {
		v.Piece = &PieceView{Row: b.row - b.cfg.HiddenRows, Col: b.col, Blocks: PieceBlocks(*b.piece)}
	}
	return v
}
