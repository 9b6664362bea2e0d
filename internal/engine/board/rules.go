package board

// Direction is a unit step across the grid
type Direction struct {
	DRow, DCol int
}

var (
	Horizontal   = Direction{0, 1}
	Vertical     = Direction{1, 0}
	DiagonalDown = Direction{1, 1}
	DiagonalUp   = Direction{-1, 1}
)

// Rules is the match table applied after every landing.
// A run of MinRun or more identical letters along any of Directions matches,
// as does any of Words spelled forwards or backwards along those directions.
type Rules struct {
	MinRun     int
	Directions []Direction
	Words      []string
}

// DefaultRules matches runs of three and the word TOWERS in all four directions
func DefaultRules() Rules {
	return Rules{
		MinRun:     3,
		Directions: []Direction{Horizontal, Vertical, DiagonalDown, DiagonalUp},
		Words:      []string{Letters},
	}
}

// MarkMatches flags every cell that takes part in at least one match
func MarkMatches(g Grid, rules Rules) Marks {
	marks := NewMarks(g)
	for _, d := range rules.Directions {
		for r := 0; r < g.rows; r++ {
			for c := 0; c < g.cols; c++ {
				// only walk lines from their first cell
				if g.InBounds(r-d.DRow, c-d.DCol) {
					continue
				}
				markLine(g, walkLine(g, r, c, d), rules, marks)
			}
		}
	}
	return marks
}

func walkLine(g Grid, r, c int, d Direction) []Pos {
	var line []Pos
	for g.InBounds(r, c) {
		line = append(line, Pos{r, c})
		r += d.DRow
		c += d.DCol
	}
	return line
}

func markLine(g Grid, line []Pos, rules Rules, marks Marks) {
	letters := make([]byte, len(line))
	for i, p := range line {
		if b := g.At(p.Row, p.Col); b.IsLetter() {
			letters[i] = b.Letter
		}
	}

	if rules.MinRun > 0 {
		start := 0
		for i := 1; i <= len(letters); i++ {
			if i < len(letters) && letters[i] != 0 && letters[i] == letters[start] {
				continue
			}
			if letters[start] != 0 && i-start >= rules.MinRun {
				for _, p := range line[start:i] {
					marks.Mark(p.Row, p.Col)
				}
			}
			start = i
		}
	}

	for _, w := range rules.Words {
		for _, word := range []string{w, reverse(w)} {
			for i := 0; i+len(word) <= len(letters); i++ {
				if string(letters[i:i+len(word)]) == word {
					for _, p := range line[i : i+len(word)] {
						marks.Mark(p.Row, p.Col)
					}
				}
			}
		}
	}
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
