package rules

import (
	"strings"
)

var pieceLetters = map[PieceKind]byte{
	Pawn:   'p',
	Knight: 'n',
	Bishop: 'b',
	Rook:   'r',
	Queen:  'q',
	King:   'k',
}

// Display renders the board from White's side with rank and file labels.
// Uppercase letters are White pieces, '.' marks an empty square.
func (o *Oracle) Display(p *Position) string {
	var sb strings.Builder
	sb.WriteString("  +-----------------+\n")
	for rank := 7; rank >= 0; rank-- {
		sb.WriteByte(byte('1' + rank))
		sb.WriteString(" |")
		for file := 0; file < 8; file++ {
			sb.WriteByte(' ')
			piece, ok := o.PieceAt(p, Square(rank*8+file))
			if !ok {
				sb.WriteByte('.')
				continue
			}
			letter := pieceLetters[piece.Kind]
			if piece.Side == White {
				letter -= 'a' - 'A'
			}
			sb.WriteByte(letter)
		}
		sb.WriteString(" |\n")
	}
	sb.WriteString("  +-----------------+\n")
	sb.WriteString("    a b c d e f g h\n")
	if p.Turn() == White {
		sb.WriteString("White to move")
	} else {
		sb.WriteString("Black to move")
	}
	if p.inCheck() {
		sb.WriteString(" (check)")
	}
	return sb.String()
}
