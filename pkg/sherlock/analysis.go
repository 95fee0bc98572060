// Package sherlock performs retrograde legality analysis of chess positions:
// given a static board, it decides whether the position is reachable from the
// standard starting array by some sequence of legal moves.
package sherlock

import (
	"fmt"

	"github.com/herohde/sherlock/pkg/board"
	"github.com/seekerror/stdlib/pkg/lang"
)

// destiny is the narrowed set of squares a starting-array piece may occupy now,
// plus whether "captured" remains a live possibility.
type destiny struct {
	squares  board.Bitboard
	captured bool
}

// bounds is a closed integer interval, used for capture counts.
type bounds struct {
	lo, hi int
}

// Analysis is the mutable fact store for one legality check. It is owned
// exclusively by the call that created it; rules narrow it until a fixed
// point or a contradiction is reached.
type Analysis struct {
	pos  *board.Position
	turn board.Color

	origins   map[board.Square]board.Bitboard
	destinies map[board.Square]destiny

	steady board.Bitboard

	captures [board.NumColors]bounds
	parity   [board.NumColors]lang.Optional[bool]
	missing  [board.NumColors][board.NumPieces]int

	// epPawn/epForced record the square of the pawn the en-passant rule has
	// pinned as having just double-pushed, if any. Consumed by the parity rule.
	epPawn   board.Square
	epForced bool

	illegal bool
	reason  string

	progress int
}

// NewAnalysis builds the initial, maximally loose fact store for pos with turn to move.
func NewAnalysis(pos *board.Position, turn board.Color) *Analysis {
	a := &Analysis{
		pos:       pos,
		turn:      turn,
		origins:   make(map[board.Square]board.Bitboard),
		destinies: make(map[board.Square]destiny),
	}

	for c := board.ZeroColor; c < board.NumColors; c++ {
		a.captures[c] = bounds{lo: 0, hi: 16}

		for piece := board.Pawn; piece <= board.King; piece++ {
			for _, sq := range squaresOf(pos.Piece(c, piece)) {
				a.origins[sq] = seedOrigin(c, piece)
			}
		}

		for _, sq := range startSquares(c, board.Pawn) {
			a.destinies[sq] = destiny{squares: onBoardAnyKind(pos, c), captured: true}
		}
		for piece := board.Bishop; piece <= board.King; piece++ {
			for _, sq := range startSquares(c, piece) {
				a.destinies[sq] = destiny{squares: pos.Piece(c, piece), captured: true}
			}
		}
	}

	return a
}

// Pos returns the board under analysis.
func (a *Analysis) Pos() *board.Position { return a.pos }

// Turn returns the side to move in the board under analysis.
func (a *Analysis) Turn() board.Color { return a.turn }

// Origins returns the candidate start squares for the piece currently on sq.
// Only meaningful for squares occupied in Pos().
func (a *Analysis) Origins(sq board.Square) board.Bitboard {
	return a.origins[sq]
}

// Destinies returns the candidate current squares -- and whether "captured"
// remains possible -- for the starting-array piece that began on start.
func (a *Analysis) Destinies(start board.Square) (board.Bitboard, bool) {
	d := a.destinies[start]
	return d.squares, d.captured
}

// Steady returns the set of currently-occupied squares proven never to have moved.
func (a *Analysis) Steady() board.Bitboard {
	return a.steady
}

// Captures returns the current [lo,hi] bound on the number of captures made by c.
func (a *Analysis) Captures(c board.Color) (int, int) {
	b := a.captures[c]
	return b.lo, b.hi
}

// Parity returns the provable parity of c's move count, if known.
func (a *Analysis) Parity(c board.Color) (bool, bool) {
	return a.parity[c].V()
}

// Missing returns how many of (color,piece) have been captured, best known lower bound.
func (a *Analysis) Missing(c board.Color, piece board.Piece) int {
	return a.missing[c][piece]
}

// Illegal returns whether a contradiction has been derived.
func (a *Analysis) Illegal() bool {
	return a.illegal
}

// IllegalReason returns the debug tag of the rule that first raised a contradiction, if any.
// Never part of the boolean contract -- for logging only.
func (a *Analysis) IllegalReason() (string, bool) {
	return a.reason, a.illegal
}

// Progress returns the monotonic tick, incremented whenever a mutator narrows a fact.
func (a *Analysis) Progress() int {
	return a.progress
}

// IntersectOrigins narrows origins(sq) to its intersection with set.
func (a *Analysis) IntersectOrigins(sq board.Square, set board.Bitboard) {
	cur, ok := a.origins[sq]
	if !ok {
		return
	}
	next := cur & set
	if next == cur {
		return
	}
	a.origins[sq] = next
	a.progress++
	if next == 0 {
		a.MarkIllegal(fmt.Sprintf("origins(%v) exhausted", sq))
	}
}

// IntersectDestinies narrows destinies(start) to its intersection with set, and captured
// to captured && stillCaptured.
func (a *Analysis) IntersectDestinies(start board.Square, set board.Bitboard, stillCaptured bool) {
	cur, ok := a.destinies[start]
	if !ok {
		return
	}
	next := destiny{squares: cur.squares & set, captured: cur.captured && stillCaptured}
	if next == cur {
		return
	}
	a.destinies[start] = next
	a.progress++
	if next.squares == 0 && !next.captured {
		a.MarkIllegal(fmt.Sprintf("destinies(%v) exhausted", start))
	}
}

// TightenCaptures intersects c's capture bound with [lo,hi].
func (a *Analysis) TightenCaptures(c board.Color, lo, hi int) {
	cur := a.captures[c]
	next := bounds{lo: max(cur.lo, lo), hi: min(cur.hi, hi)}
	if next == cur {
		return
	}
	a.captures[c] = next
	a.progress++
	if next.lo > next.hi {
		a.MarkIllegal(fmt.Sprintf("captures(%v) bound empty", c))
	}
}

// SetParity records c's move-count parity (true=odd), returning whether this narrowed
// the fact store. Conflicting with a previously-recorded parity is illegal.
func (a *Analysis) SetParity(c board.Color, odd bool) bool {
	if v, ok := a.parity[c].V(); ok {
		if v != odd {
			a.MarkIllegal(fmt.Sprintf("parity(%v) contradiction", c))
		}
		return false
	}
	a.parity[c] = lang.Some(odd)
	a.progress++
	return true
}

// setMissing records the lower-bound count of missing (color,piece), returning whether
// this narrowed the fact store.
func (a *Analysis) setMissing(c board.Color, piece board.Piece, count int) bool {
	if count <= a.missing[c][piece] {
		return false
	}
	a.missing[c][piece] = count
	a.progress++
	return true
}

// markSteady adds sq to the steady set and pins its origin/destiny to singletons.
// Returns whether this narrowed the fact store.
func (a *Analysis) markSteady(sq board.Square) bool {
	if a.steady.IsSet(sq) {
		return false
	}
	a.steady |= board.BitMask(sq)
	a.progress++

	a.IntersectOrigins(sq, board.BitMask(sq))
	a.IntersectDestinies(sq, board.BitMask(sq), false)
	return true
}

// markEnPassantForced records that sq's pawn is known to have just double-pushed.
func (a *Analysis) markEnPassantForced(sq board.Square) {
	if a.epForced && a.epPawn == sq {
		return
	}
	a.epForced = true
	a.epPawn = sq
	a.progress++
}

// MarkIllegal sets the sticky illegal flag. reason is a debug-only tag, never part of
// the boolean contract. Idempotent: the first reason recorded wins.
func (a *Analysis) MarkIllegal(reason string) {
	if a.illegal {
		return
	}
	a.illegal = true
	a.reason = reason
	a.progress++
}

// seedOrigin returns the maximally loose set of candidate start squares for a piece of
// (color,piece) currently on the board: its own kind's home squares, plus -- for anything
// but King -- the home-file squares of a pawn that could have promoted into it.
func seedOrigin(c board.Color, piece board.Piece) board.Bitboard {
	if piece == board.Pawn {
		return board.BitRank(pawnHomeRank(c))
	}

	home := officerHomeSquares(c, piece)
	if piece == board.King {
		return home
	}
	return home | board.BitRank(pawnHomeRank(c))
}

// onBoardAnyKind returns every square currently occupied by a piece of color c, of any kind.
func onBoardAnyKind(pos *board.Position, c board.Color) board.Bitboard {
	var ret board.Bitboard
	for piece := board.Pawn; piece <= board.King; piece++ {
		ret |= pos.Piece(c, piece)
	}
	return ret
}

func pawnHomeRank(c board.Color) board.Rank {
	if c == board.White {
		return board.Rank2
	}
	return board.Rank7
}

// officerHomeSquares returns the starting-array home squares for (color,piece), piece != Pawn.
func officerHomeSquares(c board.Color, piece board.Piece) board.Bitboard {
	switch piece {
	case board.King:
		return board.BitMask(board.KingHome(c))
	case board.Queen:
		if c == board.White {
			return board.BitMask(board.D1)
		}
		return board.BitMask(board.D8)
	case board.Rook:
		return board.BitMask(board.RookHome(c, true)) | board.BitMask(board.RookHome(c, false))
	case board.Bishop:
		if c == board.White {
			return board.BitMask(board.C1) | board.BitMask(board.F1)
		}
		return board.BitMask(board.C8) | board.BitMask(board.F8)
	case board.Knight:
		if c == board.White {
			return board.BitMask(board.B1) | board.BitMask(board.G1)
		}
		return board.BitMask(board.B8) | board.BitMask(board.G8)
	default:
		return 0
	}
}

// startSquares returns the starting-array home squares for (color,piece) as a slice.
func startSquares(c board.Color, piece board.Piece) []board.Square {
	return squaresOf(officerHomeSquaresOrPawn(c, piece))
}

func officerHomeSquaresOrPawn(c board.Color, piece board.Piece) board.Bitboard {
	if piece == board.Pawn {
		return board.BitRank(pawnHomeRank(c))
	}
	return officerHomeSquares(c, piece)
}

// squaresOf returns the set bits of bb as squares, ascending.
func squaresOf(bb board.Bitboard) []board.Square {
	var ret []board.Square
	for bb != 0 {
		sq := bb.LastPopSquare()
		ret = append(ret, sq)
		bb &^= board.BitMask(sq)
	}
	return ret
}

func isLightSquare(sq board.Square) bool {
	return (int(sq.File())+int(sq.Rank()))%2 == 0
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
