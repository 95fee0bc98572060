package sherlock

import (
	"context"
	"fmt"

	"github.com/herohde/sherlock/pkg/board"
	"github.com/seekerror/logw"
)

// ColoredPiece names a (color, piece kind) pair, such as (White, Bishop).
type ColoredPiece struct {
	Color board.Color
	Piece board.Piece
}

func (cp ColoredPiece) String() string {
	return fmt.Sprintf("(%v,%v)", cp.Color, cp.Piece)
}

// AllColoredPieces is the canonical ordering of the 12 colored piece kinds, white first,
// king/queen/rook/bishop/knight/pawn within each color. LegalPiecesOn reports candidates
// in this order.
var AllColoredPieces = buildAllColoredPieces()

func buildAllColoredPieces() []ColoredPiece {
	order := []board.Piece{board.King, board.Queen, board.Rook, board.Bishop, board.Knight, board.Pawn}
	var ret []ColoredPiece
	for _, c := range []board.Color{board.White, board.Black} {
		for _, p := range order {
			ret = append(ret, ColoredPiece{Color: c, Piece: p})
		}
	}
	return ret
}

// IsLegal decides whether pos, with turn to move, is reachable from the standard starting
// array by some sequence of legal moves. The engine is sound -- a false result always
// means a contradiction was actually derived -- but not complete: some illegal positions
// may report true.
func IsLegal(ctx context.Context, pos *board.Position, turn board.Color) bool {
	a := NewAnalysis(pos, turn)
	run(ctx, pos, turn, a, Registry)

	if a.Illegal() {
		reason, _ := a.IllegalReason()
		logw.Debugf(ctx, "sherlock: illegal %v: %v", pos, reason)
		return false
	}
	return true
}

// LegalPiecesOn tries each of the 12 colored piece kinds on sq in turn and reports those
// that yield a legal position, in AllColoredPieces order. Placement that leaves the side
// not to move in check is rejected up front by board.Position.WithPiece, a separate
// forward-legality check, before the retrograde analysis ever runs.
func LegalPiecesOn(ctx context.Context, pos *board.Position, sq board.Square, turn board.Color) []ColoredPiece {
	var ret []ColoredPiece
	for _, cp := range AllColoredPieces {
		next, ok := pos.WithPiece(sq, cp.Color, cp.Piece, turn)
		if !ok {
			continue
		}
		if IsLegal(ctx, next, turn) {
			ret = append(ret, cp)
		}
	}

	logw.Debugf(ctx, "sherlock: %v candidates on %v: %v", len(ret), sq, ret)
	return ret
}
