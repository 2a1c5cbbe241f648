package bencode

import (
	"bytes"
	"log/slog"
	"math"
	"math/big"
)

// Decode decodes exactly one value. Bytes left over after the value are
// reported as ErrTrailingData; use DecodeAll for concatenated values.
func Decode(data []byte) (Value, error) {
	value, next, err := DecodeAt(data, 0)
	if err != nil {
		return nil, err
	}
	if next != len(data) {
		return nil, syntaxError(data, next, ErrTrailingData)
	}
	return value, nil
}

// DecodeAt decodes the value starting at index and returns the index of the
// first byte after it.
func DecodeAt(data []byte, index int) (Value, int, error) {
	if index < 0 || index > len(data) {
		return nil, index, syntaxError(data, index, ErrUnexpectedEnd)
	}
	d := decoder{data: data, pos: index}
	value, err := d.decodeValue()
	if err != nil {
		return nil, index, err
	}
	return value, d.pos, nil
}

// DecodeAll decodes every value in a buffer of back to back values, e.g.
// "i999e5:hellod4:datai888ee".
func DecodeAll(data []byte) ([]Value, error) {
	if len(data) == 0 {
		return nil, syntaxError(data, 0, ErrUnexpectedEnd)
	}
	var values []Value
	for pos := 0; pos < len(data); {
		value, next, err := DecodeAt(data, pos)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		pos = next
	}
	return values, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) decodeValue() (Value, error) {
	if d.pos >= len(d.data) {
		return nil, syntaxError(d.data, d.pos, ErrUnexpectedEnd)
	}

	switch b := d.data[d.pos]; b {
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return d.readString()

	case 'i':
		return d.readInteger()

	case 'l':
		return d.decodeList()

	case 'd':
		return d.decodeDictionary()

	default:
		slog.Debug("unknown bencode type", "byte", b, "index", d.pos)
		return nil, syntaxError(d.data, d.pos, ErrFormat)
	}
}

// readString reads <length>:<bytes>. The length is accumulated while
// scanning; once it exceeds the input size the value can never fit, so it
// stops growing and the payload check below reports ErrUnexpectedEnd.
func (d *decoder) readString() (String, error) {
	start := d.pos
	length := 0
	tooLong := false
	for d.pos < len(d.data) && isDigit(d.data[d.pos]) {
		if length > len(d.data) {
			tooLong = true
		} else {
			length = length*10 + int(d.data[d.pos]-'0')
		}
		d.pos++
	}
	if d.pos == start {
		return nil, syntaxError(d.data, start, ErrFormat)
	}

	if d.pos >= len(d.data) || d.data[d.pos] != ':' {
		return nil, syntaxError(d.data, d.pos, ErrMissingSeparator)
	}
	d.pos++ // skip ':'

	if tooLong || length > len(d.data)-d.pos {
		return nil, syntaxError(d.data, start, ErrUnexpectedEnd)
	}

	str := bytes.Clone(d.data[d.pos : d.pos+length])
	if str == nil {
		str = []byte{}
	}
	d.pos += length
	return String(str), nil
}

func (d *decoder) readInteger() (Integer, error) {
	start := d.pos
	d.pos++ // skip 'i'

	end := bytes.IndexByte(d.data[d.pos:], 'e')
	if end < 0 {
		return Integer{}, syntaxError(d.data, start, ErrUnterminatedInteger)
	}

	n, ok := parseInteger(d.data[d.pos : d.pos+end])
	if !ok {
		return Integer{}, syntaxError(d.data, d.pos, ErrInvalidInteger)
	}
	d.pos += end + 1 // digits and 'e'
	return n, nil
}

// parseInteger accumulates the digits one at a time, switching to big.Int
// only once the value no longer fits in a uint64. It rejects an empty
// literal, a '+' sign, a lone '-', "-0" and leading zeros.
func parseInteger(text []byte) (Integer, bool) {
	negative := false
	if len(text) > 0 && text[0] == '-' {
		negative = true
		text = text[1:]
	}
	if len(text) == 0 {
		return Integer{}, false
	}
	if text[0] == '0' && (len(text) > 1 || negative) {
		return Integer{}, false
	}

	var small uint64
	var large *big.Int
	for _, c := range text {
		if !isDigit(c) {
			return Integer{}, false
		}
		digit := uint64(c - '0')
		if large == nil {
			if small <= (math.MaxUint64-digit)/10 {
				small = small*10 + digit
				continue
			}
			large = new(big.Int).SetUint64(small)
		}
		large.Mul(large, big.NewInt(10))
		large.Add(large, new(big.Int).SetUint64(digit))
	}

	if large == nil {
		large = new(big.Int).SetUint64(small)
	}
	if negative {
		large.Neg(large)
	}
	return Integer{n: large}, true
}

func (d *decoder) decodeList() (List, error) {
	start := d.pos
	d.pos++ // skip 'l'

	list := make(List, 0)
	for {
		if d.pos >= len(d.data) {
			return nil, syntaxError(d.data, start, ErrUnterminatedList)
		}
		if d.data[d.pos] == 'e' {
			d.pos++
			break
		}

		value, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		list = append(list, value)
	}
	return list, nil
}

// decodeDictionary accepts keys in any order. A repeated key keeps the last
// value seen.
func (d *decoder) decodeDictionary() (Dict, error) {
	start := d.pos
	d.pos++ // skip 'd'

	dict := make(Dict)
	for {
		if d.pos >= len(d.data) {
			return nil, syntaxError(d.data, start, ErrUnterminatedDictionary)
		}
		if d.data[d.pos] == 'e' {
			d.pos++
			break
		}

		keyStart := d.pos
		key, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		keyStr, ok := key.(String)
		if !ok {
			return nil, syntaxError(d.data, keyStart, ErrNonStringKey)
		}

		// a key must be followed by a value, not by the end of input or 'e'
		if d.pos >= len(d.data) || d.data[d.pos] == 'e' {
			return nil, syntaxError(d.data, keyStart, ErrUnterminatedDictionary)
		}
		value, err := d.decodeValue()
		if err != nil {
			return nil, err
		}

		if _, dup := dict[string(keyStr)]; dup {
			slog.Debug("duplicate dictionary key, keeping last", "key", string(keyStr), "index", keyStart)
		}
		dict[string(keyStr)] = value
	}
	return dict, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
