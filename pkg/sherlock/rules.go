package sherlock

import (
	"github.com/herohde/sherlock/pkg/board"
)

// Verdict is the outcome of a single rule application.
type Verdict int

const (
	Unchanged Verdict = iota
	Changed
	Illegal
)

// Rule is a stateless deduction step over a fact store. Rules are independently sound:
// given a correct over-approximation of the reachable position's history, the output
// remains one. Registry order only affects convergence speed, never the final verdict.
type Rule interface {
	Apply(pos *board.Position, turn board.Color, a *Analysis) Verdict
}

// Registry is the ordered set of rules the scheduler applies each pass.
var Registry = []Rule{
	materialRule{},
	steadyRule{},
	originsRule{},
	destiniesRule{},
	capturesRule{},
	enPassantRule{},
	parityRule{},
	castlingRule{},
	mobilityRule{},
}

// materialRule enforces that on-board counts plus promotions never exceed the initial
// army, per (color, kind). See 4.3.1.
type materialRule struct{}

func (materialRule) Apply(pos *board.Position, turn board.Color, a *Analysis) Verdict {
	changed := false

	for c := board.ZeroColor; c < board.NumColors; c++ {
		pawns := pos.Piece(c, board.Pawn).PopCount()
		if pawns > 8 {
			a.MarkIllegal("material: too many pawns")
			return Illegal
		}
		missingPawns := 8 - pawns

		// Every promoted officer spends one of the missing pawns, and the spend is
		// shared across kinds -- two kinds each one-over on their own can't both be
		// explained by a single missing pawn.
		excess := 0
		for _, piece := range []board.Piece{board.Queen, board.Rook, board.Bishop, board.Knight} {
			onBoard := pos.Piece(c, piece).PopCount()
			original := officerHomeSquares(c, piece).PopCount()

			switch {
			case onBoard > original:
				excess += onBoard - original
			case onBoard < original:
				if a.setMissing(c, piece, original-onBoard) {
					changed = true
				}
			}
		}
		if excess > missingPawns {
			a.MarkIllegal("material: too many officers for promotions available")
			return Illegal
		}
		if missingPawns > 0 {
			if a.setMissing(c, board.Pawn, missingPawns) {
				changed = true
			}
		}
	}

	if changed {
		return Changed
	}
	return Unchanged
}

// steadyRule grows the steady-piece set to a fixed point: kings/rooks backed by surviving
// castling rights, pawns on their own home square (pawns never move backward, so this is
// unconditionally sound), and officers enclosed on every side by squares already proven
// steady. See 4.3.2.
type steadyRule struct{}

func (steadyRule) Apply(pos *board.Position, turn board.Color, a *Analysis) Verdict {
	changed := false

	for c := board.ZeroColor; c < board.NumColors; c++ {
		home := board.KingHome(c)
		if co, piece, ok := pos.Square(home); ok && co == c && piece == board.King {
			if pos.Castling().IsAllowed(board.KingSideRight(c)) || pos.Castling().IsAllowed(board.QueenSideRight(c)) {
				if a.markSteady(home) {
					changed = true
				}
			}
		}

		for _, kingSide := range []bool{true, false} {
			rookHome := board.RookHome(c, kingSide)
			if co, piece, ok := pos.Square(rookHome); ok && co == c && piece == board.Rook {
				right := board.KingSideRight(c)
				if !kingSide {
					right = board.QueenSideRight(c)
				}
				if pos.Castling().IsAllowed(right) {
					if a.markSteady(rookHome) {
						changed = true
					}
				}
			}
		}

		for _, sq := range squaresOf(pos.Piece(c, board.Pawn)) {
			if sq.Rank() == pawnHomeRank(c) {
				if a.markSteady(sq) {
					changed = true
				}
			}
		}
	}

	for _, piece := range []board.Piece{board.Bishop, board.Knight, board.Rook, board.Queen, board.King} {
		for c := board.ZeroColor; c < board.NumColors; c++ {
			for _, sq := range squaresOf(pos.Piece(c, piece)) {
				home := officerHomeSquares(c, piece)
				if !home.IsSet(sq) {
					continue
				}
				if a.steady.IsSet(sq) {
					continue
				}
				if isEnclosed(pos, a.steady, sq, piece) {
					if a.markSteady(sq) {
						changed = true
					}
				}
			}
		}
	}

	if changed {
		return Changed
	}
	return Unchanged
}

// isEnclosed reports whether the piece at sq could never have left it, because every
// direction it could move in is permanently blocked by a square in steady.
func isEnclosed(pos *board.Position, steady board.Bitboard, sq board.Square, piece board.Piece) bool {
	if piece == board.Knight {
		targets := board.KnightAttackboard(sq)
		return targets&^steady == 0
	}

	dirs := bishopDirs
	switch piece {
	case board.Rook:
		dirs = rookDirs
	case board.Queen, board.King:
		dirs = queenDirs
	}

	f, r := int(sq.File()), int(sq.Rank())
	for _, d := range dirs {
		nf, nr := f+d[0], r+d[1]
		if nf < 0 || nf > 7 || nr < 0 || nr > 7 {
			continue // off board: no egress in this direction
		}
		neighbor := board.NewSquare(board.File(nf), board.Rank(nr))
		if !pos.IsEmpty(neighbor) && steady.IsSet(neighbor) {
			continue // permanently blocked
		}
		return false
	}
	return true
}

var bishopDirs = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
var queenDirs = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// originsRule narrows each occupied square's candidate start squares. Two independent
// narrowings apply: the generic origin/destiny consistency invariant (a start square s
// remains a candidate for sq only if sq remains a candidate destiny of s -- a cheap
// cross-check layered on top of every rule's output, not a substitute for the pawn-routing
// test below), and, for pawns specifically, the admissible-start-file test of 4.3.3: a
// start file is inadmissible once its file distance from the pawn's current file exceeds
// what the pawn's own side could have spent on file-changing captures.
type originsRule struct{}

func (originsRule) Apply(pos *board.Position, turn board.Color, a *Analysis) Verdict {
	changed := false

	for sq, origins := range a.origins {
		var keep board.Bitboard
		for _, s := range squaresOf(origins) {
			set, _ := a.Destinies(s)
			if set.IsSet(sq) {
				keep |= board.BitMask(s)
			}
		}
		before := a.origins[sq]
		a.IntersectOrigins(sq, keep)
		if a.origins[sq] != before {
			changed = true
		}
	}

	for c := board.ZeroColor; c < board.NumColors; c++ {
		for _, sq := range squaresOf(pos.Piece(c, board.Pawn)) {
			before := a.origins[sq]
			a.IntersectOrigins(sq, pawnAdmissibleOriginFiles(a, c, sq))
			if a.origins[sq] != before {
				changed = true
			}
		}
	}

	if a.illegal {
		return Illegal
	}
	if changed {
		return Changed
	}
	return Unchanged
}

// pawnAdmissibleOriginFiles returns the home-rank squares whose file distance from sq is
// within the pawn's budget of file changes: every file change a pawn ever makes is a
// capture made on a forward step, so a start file is admissible only if its distance is at
// most min(ranks advanced from the home rank, Captures(c).hi). See 4.3.3.
func pawnAdmissibleOriginFiles(a *Analysis, c board.Color, sq board.Square) board.Bitboard {
	rankAdvance := int(sq.Rank()) - int(pawnHomeRank(c))
	if rankAdvance < 0 {
		rankAdvance = -rankAdvance
	}
	_, hi := a.Captures(c)
	budget := min(rankAdvance, hi)

	var admissible board.Bitboard
	for f := board.ZeroFile; f < board.NumFiles; f++ {
		start := board.NewSquare(f, pawnHomeRank(c))
		if board.FileDistance(sq, start) <= budget {
			admissible |= board.BitMask(start)
		}
	}
	return admissible
}

// destiniesRule narrows each start square's candidate current squares. Symmetric to
// originsRule: the generic consistency invariant, plus, for pawn start squares, the
// admissible-destination test of 4.3.4.
type destiniesRule struct{}

func (destiniesRule) Apply(pos *board.Position, turn board.Color, a *Analysis) Verdict {
	changed := false

	for start, d := range a.destinies {
		var keep board.Bitboard
		for _, sq := range squaresOf(d.squares) {
			if a.origins[sq].IsSet(start) {
				keep |= board.BitMask(sq)
			}
		}
		before := a.destinies[start]
		a.IntersectDestinies(start, keep, d.captured)
		if a.destinies[start] != before {
			changed = true
		}
	}

	for c := board.ZeroColor; c < board.NumColors; c++ {
		for _, start := range startSquares(c, board.Pawn) {
			d := a.destinies[start]
			before := d.squares
			admissible := pawnAdmissibleDestinySquares(pos, a, c, start, d.squares)
			if admissible != before {
				a.IntersectDestinies(start, admissible, d.captured)
				changed = true
			}
		}
	}

	if a.illegal {
		return Illegal
	}
	if changed {
		return Changed
	}
	return Unchanged
}

// pawnAdmissibleDestinySquares narrows candidates to those whose file distance from start
// is within c's capture budget and within the ranks actually available to cross it in: a
// candidate still holding a pawn of c is bounded by its own rank advance from home; any
// other candidate implies a promotion, which can only happen after advancing all the way
// to the back rank. See 4.3.4.
func pawnAdmissibleDestinySquares(pos *board.Position, a *Analysis, c board.Color, start board.Square, candidates board.Bitboard) board.Bitboard {
	homeRank := pawnHomeRank(c)
	promoRank := board.Rank8
	if c == board.Black {
		promoRank = board.Rank1
	}
	promoAdvance := int(promoRank) - int(homeRank)
	if promoAdvance < 0 {
		promoAdvance = -promoAdvance
	}

	_, hi := a.Captures(c)

	var keep board.Bitboard
	for _, sq := range squaresOf(candidates) {
		rankAdvance := promoAdvance
		if co, piece, ok := pos.Square(sq); ok && co == c && piece == board.Pawn {
			rankAdvance = int(sq.Rank()) - int(homeRank)
			if rankAdvance < 0 {
				rankAdvance = -rankAdvance
			}
		}
		if board.FileDistance(start, sq) <= min(rankAdvance, hi) {
			keep |= board.BitMask(sq)
		}
	}
	return keep
}

// capturesRule bounds each side's capture count: the lower bound from the opponent's
// confirmed missing pieces and from file-changes forced on its own surviving pawns; the
// upper bound from 15 (every non-king piece the opponent started with) minus however many
// of the opponent's current pieces are proven steady, since a steady piece is proven to
// have stood in place since move one and so cannot be standing in for a capture. See 4.3.5.
type capturesRule struct{}

func (capturesRule) Apply(pos *board.Position, turn board.Color, a *Analysis) Verdict {
	changed := false

	for c := board.ZeroColor; c < board.NumColors; c++ {
		opp := c.Opponent()

		missingSum := 0
		for piece := board.Pawn; piece <= board.King; piece++ {
			missingSum += a.Missing(opp, piece)
		}

		forced := 0
		for _, sq := range squaresOf(pos.Piece(c, board.Pawn)) {
			min := -1
			for _, f := range squaresOf(a.Origins(sq)) {
				d := board.FileDistance(sq, f)
				if min == -1 || d < min {
					min = d
				}
			}
			if min > 0 {
				forced += min
			}
		}

		steadyNonKing := (a.Steady() & onBoardAnyKind(pos, opp) &^ pos.Piece(opp, board.King)).PopCount()

		lo := max(missingSum, forced)
		hi := 15 - steadyNonKing
		before := a.captures[c]
		a.TightenCaptures(c, lo, hi)
		if a.captures[c] != before {
			changed = true
		}
	}

	if a.illegal {
		return Illegal
	}
	if changed {
		return Changed
	}
	return Unchanged
}

// enPassantRule pins the double-pushing pawn's origin and records the forced prior
// half-move for the parity rule. See 4.3.8.
type enPassantRule struct{}

func (enPassantRule) Apply(pos *board.Position, turn board.Color, a *Analysis) Verdict {
	target, ok := pos.EnPassant()
	if !ok {
		return Unchanged
	}

	pusher := turn.Opponent()
	delta := -1
	if pusher == board.White {
		delta = 1
	}
	pawnRank := int(target.Rank()) + delta
	homeRank := int(target.Rank()) - delta
	if pawnRank < 0 || pawnRank > 7 {
		a.MarkIllegal("en passant: target square has no room for a pusher")
		return Illegal
	}
	pawnSquare := board.NewSquare(target.File(), board.Rank(pawnRank))

	co, piece, present := pos.Square(pawnSquare)
	if !present || co != pusher || piece != board.Pawn {
		a.MarkIllegal("en passant: no double-pushed pawn adjacent to target")
		return Illegal
	}

	home := board.NewSquare(target.File(), board.Rank(homeRank))
	if !pos.IsEmpty(home) {
		a.MarkIllegal("en passant: pusher's home square still occupied")
		return Illegal
	}

	changed := false
	before := a.origins[pawnSquare]
	a.IntersectOrigins(pawnSquare, board.BitMask(board.NewSquare(target.File(), pawnHomeRank(pusher))))
	if a.origins[pawnSquare] != before {
		changed = true
	}
	if !a.epForced {
		a.markEnPassantForced(pawnSquare)
		changed = true
	}

	if a.illegal {
		return Illegal
	}
	if changed {
		return Changed
	}
	return Unchanged
}

// parityRule derives whose turn it must be from each side's move-count parity, when the
// origin/destiny facts prove every move played was a pawn or knight move. See 4.3.6.
type parityRule struct{}

func (parityRule) Apply(pos *board.Position, turn board.Color, a *Analysis) Verdict {
	for c := board.ZeroColor; c < board.NumColors; c++ {
		for _, piece := range []board.Piece{board.Queen, board.Rook, board.Bishop} {
			if a.Missing(c, piece) > 0 {
				return Unchanged
			}
		}
		for _, piece := range []board.Piece{board.King, board.Queen, board.Rook, board.Bishop} {
			for _, sq := range squaresOf(pos.Piece(c, piece)) {
				if !a.steady.IsSet(sq) {
					return Unchanged
				}
			}
		}
	}

	wp, ok1 := pawnParity(pos, a, board.White)
	wk, ok2 := knightParity(pos, a, board.White)
	bp, ok3 := pawnParity(pos, a, board.Black)
	bk, ok4 := knightParity(pos, a, board.Black)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Unchanged
	}

	whiteOdd := (wp ^ wk) == 1
	blackOdd := (bp ^ bk) == 1

	expectWhiteToMove := whiteOdd == blackOdd
	actualWhiteToMove := turn == board.White
	if expectWhiteToMove != actualWhiteToMove {
		a.MarkIllegal("parity: side to move inconsistent with forced move counts")
		return Illegal
	}

	c1 := a.SetParity(board.White, whiteOdd)
	c2 := a.SetParity(board.Black, blackOdd)
	if a.illegal {
		return Illegal
	}
	if c1 || c2 {
		return Changed
	}
	return Unchanged
}

// pawnParity returns the provable parity (0=even,1=odd) of the total move count made by
// c's surviving pawns, and whether it is provable at all.
func pawnParity(pos *board.Position, a *Analysis, c board.Color) (int, bool) {
	total := 0
	homeRank := pawnHomeRank(c)

	for _, sq := range squaresOf(pos.Piece(c, board.Pawn)) {
		rankAdvance := int(sq.Rank()) - int(homeRank)
		if rankAdvance < 0 {
			rankAdvance = -rankAdvance
		}
		if rankAdvance == 0 {
			continue
		}
		if a.epForced && a.epPawn == sq {
			total ^= (rankAdvance - 1) % 2
			continue
		}

		for _, f := range squaresOf(a.Origins(sq)) {
			if board.FileDistance(sq, f) != rankAdvance {
				return 0, false
			}
		}
		total ^= rankAdvance % 2
	}
	return total & 1, true
}

// knightParity returns the provable parity of the total move count made by c's knights,
// living and captured, and whether it is provable at all.
func knightParity(pos *board.Position, a *Analysis, c board.Color) (int, bool) {
	total := 0

	missing := a.Missing(c, board.Knight)
	total ^= missing % 2

	home := officerHomeSquares(c, board.Knight)
	for _, sq := range squaresOf(pos.Piece(c, board.Knight)) {
		origins := a.Origins(sq)
		if origins.PopCount() != 1 {
			return 0, false
		}
		start := origins.LastPopSquare()
		if !home.IsSet(start) {
			return 0, false // promoted-into candidate: color-flip trick doesn't apply
		}
		if isLightSquare(sq) != isLightSquare(start) {
			total ^= 1
		}
	}
	return total & 1, true
}

// castlingRule requires that any declared castling right's king and rook stand steady on
// their home squares. See 4.3.9.
type castlingRule struct{}

func (castlingRule) Apply(pos *board.Position, turn board.Color, a *Analysis) Verdict {
	changed := false

	for c := board.ZeroColor; c < board.NumColors; c++ {
		for _, kingSide := range []bool{true, false} {
			right := board.KingSideRight(c)
			if !kingSide {
				right = board.QueenSideRight(c)
			}
			if !pos.Castling().IsAllowed(right) {
				continue
			}

			home := board.KingHome(c)
			if co, piece, ok := pos.Square(home); !ok || co != c || piece != board.King {
				a.MarkIllegal("castling: king not on home square")
				return Illegal
			}
			rookHome := board.RookHome(c, kingSide)
			if co, piece, ok := pos.Square(rookHome); !ok || co != c || piece != board.Rook {
				a.MarkIllegal("castling: rook not on home square")
				return Illegal
			}
			if a.markSteady(home) {
				changed = true
			}
			if a.markSteady(rookHome) {
				changed = true
			}
		}
	}

	if a.illegal {
		return Illegal
	}
	if changed {
		return Changed
	}
	return Unchanged
}

// mobilityRule bounds each piece's candidate origins to the squares reachable from its
// current square through a graph where steady-occupied squares are permanent walls. Pawns
// are included, walking the graph backward one rank at a time and respecting file
// constraints (a pawn's predecessor is the same file, or an adjacent file if the step
// models a capture). Every other piece walks the graph of its own one-step pattern: king
// and queen in 8 directions, rook orthogonally, bishop diagonally, knight by its jumps.
// See 4.3.7.
type mobilityRule struct{}

func (mobilityRule) Apply(pos *board.Position, turn board.Color, a *Analysis) Verdict {
	changed := false

	for c := board.ZeroColor; c < board.NumColors; c++ {
		for _, piece := range []board.Piece{board.King, board.Queen, board.Rook, board.Bishop, board.Knight, board.Pawn} {
			for _, sq := range squaresOf(pos.Piece(c, piece)) {
				if a.steady.IsSet(sq) {
					continue // pinned already; nothing to tighten
				}

				reachable := reachableGraph(a.steady, sq, piece, c)
				before := a.origins[sq]
				a.IntersectOrigins(sq, reachable)
				if a.origins[sq] != before {
					changed = true
				}
			}
		}
	}

	if a.illegal {
		return Illegal
	}
	if changed {
		return Changed
	}
	return Unchanged
}

// reachableGraph flood-fills the squares reachable from sq by piece's movement pattern,
// never landing on or passing through a square set in steady. c only matters for Pawn,
// whose movement is directional and hence not its own inverse.
func reachableGraph(steady board.Bitboard, sq board.Square, piece board.Piece, c board.Color) board.Bitboard {
	visited := board.BitMask(sq)
	frontier := []board.Square{sq}

	for len(frontier) > 0 {
		var next []board.Square
		for _, cur := range frontier {
			for _, to := range stepTargets(cur, piece, c) {
				if visited.IsSet(to) || steady.IsSet(to) {
					continue
				}
				visited |= board.BitMask(to)
				next = append(next, to)
			}
		}
		frontier = next
	}
	return visited
}

// stepTargets returns the squares piece can move to from sq in one step. For sliders and
// the king a step is the adjacent square in each of the piece's directions; longer rays are
// covered by the caller's flood fill. Occupancy is not tracked here -- the caller's steady
// filter is the only permanent wall, so this is an over-approximation. For
// Pawn, the "step" is taken backward in time: the predecessor squares one rank behind sq
// (same file for a push, either adjacent file for a capture), since a pawn's moves, unlike
// every other piece's, are not reversible.
func stepTargets(sq board.Square, piece board.Piece, c board.Color) []board.Square {
	switch piece {
	case board.King:
		return squaresOf(board.KingAttackboard(sq))
	case board.Knight:
		return squaresOf(board.KnightAttackboard(sq))
	case board.Pawn:
		backRank := int(sq.Rank())
		if c == board.White {
			backRank--
		} else {
			backRank++
		}
		if backRank < 0 || backRank > 7 {
			return nil
		}

		f := int(sq.File())
		var ret []board.Square
		for _, df := range []int{0, -1, 1} {
			if nf := f + df; nf >= 0 && nf <= 7 {
				ret = append(ret, board.NewSquare(board.File(nf), board.Rank(backRank)))
			}
		}
		return ret
	default:
		dirs := bishopDirs
		if piece == board.Rook {
			dirs = rookDirs
		} else if piece == board.Queen {
			dirs = queenDirs
		}

		f, r := int(sq.File()), int(sq.Rank())
		var ret []board.Square
		for _, d := range dirs {
			if nf, nr := f+d[0], r+d[1]; nf >= 0 && nf <= 7 && nr >= 0 && nr <= 7 {
				ret = append(ret, board.NewSquare(board.File(nf), board.Rank(nr)))
			}
		}
		return ret
	}
}

var rookDirs = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
