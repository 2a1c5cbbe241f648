package bencode

import (
	"encoding/json"
	"math/big"
	"sort"
)

// Value is one of String, Integer, List or Dict. The set is closed: the
// unexported method keeps other packages from adding variants.
type Value interface {
	Kind() Kind
	value()
}

type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindList
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindList:
		return "list"
	case KindDict:
		return "dictionary"
	default:
		return "unknown"
	}
}

// KindOf is v's kind; a nil Value has none and reports -1, printed as
// "unknown".
func KindOf(v Value) Kind {
	if v == nil {
		return -1
	}
	return v.Kind()
}

// String is a raw byte string. It is not assumed to be valid text.
type String []byte

func (String) value() {}

func (String) Kind() Kind { return KindString }

// Integer holds an integer of any width. The zero value is 0.
type Integer struct {
	n *big.Int
}

func (Integer) value() {}

func (Integer) Kind() Kind { return KindInteger }

func NewInteger(n int64) Integer {
	return Integer{n: big.NewInt(n)}
}

// NewBigInteger copies n, so later changes to n do not affect the Integer.
func NewBigInteger(n *big.Int) Integer {
	return Integer{n: new(big.Int).Set(n)}
}

// Int64 reports the value and whether it fits in an int64.
func (i Integer) Int64() (int64, bool) {
	if i.n == nil {
		return 0, true
	}
	if !i.n.IsInt64() {
		return 0, false
	}
	return i.n.Int64(), true
}

func (i Integer) Big() *big.Int {
	if i.n == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(i.n)
}

func (i Integer) String() string {
	if i.n == nil {
		return "0"
	}
	return i.n.String()
}

func (i Integer) MarshalJSON() ([]byte, error) {
	return []byte(i.String()), nil
}

type List []Value

func (List) value() {}

func (List) Kind() Kind { return KindList }

// Dict maps raw byte keys to values. Go strings carry arbitrary bytes, so
// keys are not assumed to be text either.
type Dict map[string]Value

func (Dict) value() {}

func (Dict) Kind() Kind { return KindDict }

// Keys returns the keys sorted by raw byte value, the order Encode emits.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s String) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// Equal reports whether a and b hold the same structure. Integers are
// compared by value.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case String:
		b, ok := b.(String)
		return ok && string(a) == string(b)

	case Integer:
		b, ok := b.(Integer)
		return ok && a.Big().Cmp(b.Big()) == 0

	case List:
		b, ok := b.(List)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true

	case Dict:
		b, ok := b.(Dict)
		if !ok || len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, found := b[k]
			if !found || !Equal(av, bv) {
				return false
			}
		}
		return true

	default:
		return a == nil && b == nil
	}
}
