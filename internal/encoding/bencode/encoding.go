package bencode

import (
	"bytes"
	"fmt"
	"strconv"
)

// Encode returns the canonical encoding of v: dictionary keys are written in
// ascending byte order and integers without leading zeros, so equal values
// always encode to equal bytes.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch v := v.(type) {
	case String:
		writeString(buf, v)

	case Integer:
		buf.WriteByte('i')
		buf.WriteString(v.String())
		buf.WriteByte('e')

	case List:
		buf.WriteByte('l')
		for _, item := range v {
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte('e')

	case Dict:
		buf.WriteByte('d')
		for _, key := range v.Keys() {
			writeString(buf, []byte(key))
			if err := encodeValue(buf, v[key]); err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
		}
		buf.WriteByte('e')

	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s []byte) {
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteByte(':')
	buf.Write(s)
}
