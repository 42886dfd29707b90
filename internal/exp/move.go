package exp

// Move is an opaque move code stored alongside each observation. The store
// only compares moves for equality; the layout below is what the importer
// writes and what UCI() assumes for display.
//
//	bits 0-5:   from square (0-63)
//	bits 6-11:  to square (0-63)
//	bits 12-14: promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N)
type Move uint32

const (
	moveFromMask   = 0x3F
	moveToMask     = 0xFC0
	movePromoMask  = 0x7000
	moveToShift    = 6
	movePromoShift = 12
)

// Promotion piece codes
const (
	PromoNone   = 0
	PromoQueen  = 1
	PromoRook   = 2
	PromoBishop = 3
	PromoKnight = 4
)

// EncodeMove creates a Move from square indices (A1=0 .. H8=63) and an
// optional promotion piece.
func EncodeMove(from, to int, promo byte) Move {
	if from < 0 || from > 63 || to < 0 || to > 63 {
		return 0
	}
	return Move(uint32(from) | uint32(to)<<moveToShift | uint32(promo)<<movePromoShift)
}

// DecodeMove extracts from square, to square, and promotion from a Move.
func DecodeMove(m Move) (from, to int, promo byte) {
	from = int(m & moveFromMask)
	to = int((m & moveToMask) >> moveToShift)
	promo = byte((m & movePromoMask) >> movePromoShift)
	return from, to, promo
}

// UCI renders the move in UCI notation (e.g. "e2e4", "e7e8q").
func (m Move) UCI() string {
	from, to, promo := DecodeMove(m)

	uci := []byte{
		byte('a' + from%8), byte('1' + from/8),
		byte('a' + to%8), byte('1' + to/8),
	}
	if promo >= PromoQueen && promo <= PromoKnight {
		uci = append(uci, "qrbn"[promo-1])
	}
	return string(uci)
}
