package circuit

// TBool is a three-valued logic value packed in one byte:
// 0 true, 1 false, 2 unknown.
type TBool uint8

// Three-valued constants.
const (
	TTrue  TBool = 0
	TFalse TBool = 1
	TUndef TBool = 2
)

// Binary operator tables indexed by 3*a + b.
var (
	andTable = [9]TBool{
		TTrue, TFalse, TUndef,
		TFalse, TFalse, TFalse,
		TUndef, TFalse, TUndef,
	}
	xorTable = [9]TBool{
		TFalse, TTrue, TUndef,
		TTrue, TFalse, TUndef,
		TUndef, TUndef, TUndef,
	}
)

// Not negates a ternary value; X stays X.
func (a TBool) Not() TBool {
	if a == TUndef {
		return TUndef
	}
	return 1 - a
}

// And is three-valued conjunction.
func (a TBool) And(b TBool) TBool { return andTable[3*a+b] }

// Xor is three-valued exclusive or.
func (a TBool) Xor(b TBool) TBool { return xorTable[3*a+b] }

// TIte selects a when c is true, b when false, and agrees only when
// both branches agree under an unknown condition.
func TIte(c, a, b TBool) TBool {
	switch c {
	case TTrue:
		return a
	case TFalse:
		return b
	}
	if a == b && a != TUndef {
		return a
	}
	return TUndef
}

// String renders the value as a trace character.
func (a TBool) String() string {
	switch a {
	case TTrue:
		return "1"
	case TFalse:
		return "0"
	default:
		return "X"
	}
}

// FromBool lifts a concrete bit.
func FromBool(b bool) TBool {
	if b {
		return TTrue
	}
	return TFalse
}
