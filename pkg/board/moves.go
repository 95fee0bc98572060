package board

// PseudoLegalMoves returns all moves for turn that are legal but for possibly leaving
// turn's own king in check. Castling moves are already filtered for check along the
// king's path, since that cannot be recovered by the generic "is my king in check
// afterwards" test that Move performs.
func (p *Position) PseudoLegalMoves(turn Color) []Move {
	var ret []Move

	all := p.rotated.Mask()
	own := p.pieces[turn][NoPiece]
	opp := p.pieces[turn.Opponent()][NoPiece]

	for _, from := range squaresOf(p.pieces[turn][Pawn]) {
		ret = append(ret, p.pawnMoves(turn, from, all, opp)...)
	}
	for piece := Bishop; piece <= King; piece++ {
		for _, from := range squaresOf(p.pieces[turn][piece]) {
			ret = append(ret, p.officerMoves(turn, from, piece, own, opp)...)
		}
	}
	ret = append(ret, p.castlingMoves(turn, all)...)

	return ret
}

// Move applies a pseudo-legal move and returns the resulting position, unless doing so
// would leave the mover's own king in check, in which case it returns ok=false.
func (p *Position) Move(m Move) (*Position, bool) {
	turn, piece, ok := p.Square(m.From)
	if !ok || piece != m.Piece {
		return nil, false
	}

	next := *p

	switch m.Type {
	case Capture:
		next.xor(m.To, turn.Opponent(), m.Capture)
		next.xor(m.From, turn, m.Piece)
		next.xor(m.To, turn, m.Piece)

	case Promotion:
		next.xor(m.From, turn, m.Piece)
		next.xor(m.To, turn, m.Promotion)

	case CapturePromotion:
		next.xor(m.To, turn.Opponent(), m.Capture)
		next.xor(m.From, turn, m.Piece)
		next.xor(m.To, turn, m.Promotion)

	case EnPassant:
		epc, ok := m.EnPassantCapture()
		if !ok {
			return nil, false
		}
		next.xor(epc, turn.Opponent(), Pawn)
		next.xor(m.From, turn, m.Piece)
		next.xor(m.To, turn, m.Piece)

	case KingSideCastle, QueenSideCastle:
		next.xor(m.From, turn, m.Piece)
		next.xor(m.To, turn, m.Piece)
		rookFrom, rookTo, ok := m.CastlingRookMove()
		if !ok {
			return nil, false
		}
		next.xor(rookFrom, turn, Rook)
		next.xor(rookTo, turn, Rook)

	default: // Normal, Push, Jump
		next.xor(m.From, turn, m.Piece)
		next.xor(m.To, turn, m.Piece)
	}

	next.castling &^= lostCastlingRights(turn, m)

	next.enpassant = ZeroSquare
	if m.Type == Jump {
		if target, ok := m.EnPassantTarget(); ok {
			next.enpassant = target
		}
	}

	if next.IsChecked(turn) {
		return nil, false
	}
	return &next, true
}

// LegalMoves returns all fully legal moves for turn.
func (p *Position) LegalMoves(turn Color) []Move {
	var ret []Move
	for _, m := range p.PseudoLegalMoves(turn) {
		if _, ok := p.Move(m); ok {
			ret = append(ret, m)
		}
	}
	return ret
}

func (p *Position) pawnMoves(turn Color, from Square, all, opp Bitboard) []Move {
	var ret []Move

	promoRank := PawnPromotionRank(turn)
	to := pawnForward(turn, from)

	if !all.IsSet(to) {
		ret = append(ret, pawnAdvance(from, to, Push, promoRank)...)

		if isPawnHome(turn, from) {
			jump := pawnForward(turn, to)
			if !all.IsSet(jump) {
				ret = append(ret, Move{Type: Jump, Piece: Pawn, From: from, To: jump})
			}
		}
	}

	for _, target := range squaresOf(PawnCaptureboard(turn, BitMask(from)) & opp) {
		_, capture, _ := p.Square(target)
		ret = append(ret, pawnAdvance(from, target, Capture, promoRank, capture)...)
	}

	if ep, ok := p.EnPassant(); ok && PawnCaptureboard(turn, BitMask(from)).IsSet(ep) {
		ret = append(ret, Move{Type: EnPassant, Piece: Pawn, From: from, To: ep, Capture: Pawn})
	}

	return ret
}

func pawnAdvance(from, to Square, mt MoveType, promoRank Bitboard, capture ...Piece) []Move {
	var cap Piece
	if len(capture) > 0 {
		cap = capture[0]
	}

	if !promoRank.IsSet(to) {
		return []Move{{Type: mt, Piece: Pawn, From: from, To: to, Capture: cap}}
	}

	pt := Promotion
	if mt == Capture {
		pt = CapturePromotion
	}

	var ret []Move
	for _, promo := range []Piece{Queen, Rook, Knight, Bishop} {
		ret = append(ret, Move{Type: pt, Piece: Pawn, From: from, To: to, Promotion: promo, Capture: cap})
	}
	return ret
}

func pawnForward(c Color, sq Square) Square {
	if c == White {
		return sq + 8
	}
	return sq - 8
}

func isPawnHome(c Color, sq Square) bool {
	if c == White {
		return sq.Rank() == Rank2
	}
	return sq.Rank() == Rank7
}

func (p *Position) officerMoves(turn Color, from Square, piece Piece, own, opp Bitboard) []Move {
	var ret []Move

	attacks := Attackboard(p.rotated, from, piece) &^ own

	for _, to := range squaresOf(attacks &^ opp) {
		ret = append(ret, Move{Type: Normal, Piece: piece, From: from, To: to})
	}
	for _, to := range squaresOf(attacks & opp) {
		_, capture, _ := p.Square(to)
		ret = append(ret, Move{Type: Capture, Piece: piece, From: from, To: to, Capture: capture})
	}
	return ret
}

func (p *Position) castlingMoves(turn Color, all Bitboard) []Move {
	var ret []Move

	home := KingHome(turn)
	if c, piece, ok := p.Square(home); !ok || c != turn || piece != King {
		return ret
	}

	if p.castling.IsAllowed(KingSideRight(turn)) && p.canCastle(turn, home, true) {
		ret = append(ret, Move{Type: KingSideCastle, Piece: King, From: home, To: castleTarget(turn, true)})
	}
	if p.castling.IsAllowed(QueenSideRight(turn)) && p.canCastle(turn, home, false) {
		ret = append(ret, Move{Type: QueenSideCastle, Piece: King, From: home, To: castleTarget(turn, false)})
	}
	return ret
}

func (p *Position) canCastle(turn Color, home Square, kingSide bool) bool {
	rookHome := RookHome(turn, kingSide)
	if c, piece, ok := p.Square(rookHome); !ok || c != turn || piece != Rook {
		return false
	}

	for _, sq := range squaresBetween(home, rookHome) {
		if !p.IsEmpty(sq) {
			return false
		}
	}
	for _, sq := range squaresInclusive(home, castleTarget(turn, kingSide)) {
		if p.IsAttacked(turn, sq) {
			return false
		}
	}
	return true
}

func castleTarget(c Color, kingSide bool) Square {
	switch {
	case c == White && kingSide:
		return G1
	case c == White && !kingSide:
		return C1
	case kingSide:
		return G8
	default:
		return C8
	}
}

func lostCastlingRights(turn Color, m Move) Castling {
	var lost Castling

	if m.Piece == King {
		lost |= KingSideRight(turn) | QueenSideRight(turn)
	}
	if m.From == RookHome(turn, true) {
		lost |= KingSideRight(turn)
	}
	if m.From == RookHome(turn, false) {
		lost |= QueenSideRight(turn)
	}

	opp := turn.Opponent()
	if m.To == RookHome(opp, true) {
		lost |= KingSideRight(opp)
	}
	if m.To == RookHome(opp, false) {
		lost |= QueenSideRight(opp)
	}
	return lost
}

// squaresOf returns the set bits of bb as squares, ascending.
func squaresOf(bb Bitboard) []Square {
	var ret []Square
	for bb != 0 {
		sq := bb.LastPopSquare()
		ret = append(ret, sq)
		bb &^= BitMask(sq)
	}
	return ret
}

// squaresBetween returns the squares strictly between a and b on the same rank, ascending.
func squaresBetween(a, b Square) []Square {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	var ret []Square
	for s := lo + 1; s < hi; s++ {
		ret = append(ret, s)
	}
	return ret
}

// squaresInclusive returns the squares from a to b on the same rank, inclusive, ascending.
func squaresInclusive(a, b Square) []Square {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	var ret []Square
	for s := lo; s <= hi; s++ {
		ret = append(ret, s)
	}
	return ret
}
