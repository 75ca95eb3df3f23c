// Package canonical gives every structured artifact a deterministic byte
// form and a stable sha256 identity. Object keys are sorted, whitespace is
// dropped, and escaping follows one of two fixed policies: ASCII-escaped
// for provenance hashes (portable across encodings) and UTF-8-preserving
// for secrecy fingerprints. The two must not be conflated; a fingerprint
// computed under one policy never matches a hash computed under the other.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

// MarshalCanonical serializes v into the ASCII-escaped canonical form used
// for provenance hashing.
func MarshalCanonical(v any) ([]byte, error) {
	return marshal(v, true)
}

// MarshalFingerprint serializes v into the UTF-8-preserving canonical form
// used for secrecy fingerprinting.
func MarshalFingerprint(v any) ([]byte, error) {
	return marshal(v, false)
}

func marshal(v any, asciiOnly bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v, asciiOnly); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any, asciiOnly bool) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		encodeString(buf, val, asciiOnly)
		return nil
	case json.Number:
		// Preserve the source literal; it is already a valid JSON number.
		buf.WriteString(val.String())
		return nil
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int8, int16, int32, int64:
		buf.WriteString(strconv.FormatInt(reflect.ValueOf(val).Int(), 10))
		return nil
	case uint, uint8, uint16, uint32, uint64:
		buf.WriteString(strconv.FormatUint(reflect.ValueOf(val).Uint(), 10))
		return nil
	case float32:
		return encodeFloat(buf, float64(val))
	case float64:
		return encodeFloat(buf, val)
	case []any:
		return encodeSlice(buf, val, asciiOnly)
	case map[string]any:
		return encodeMap(buf, val, asciiOnly)
	}

	// Fall back to reflection for typed slices and string-keyed maps.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return encodeSlice(buf, items, asciiOnly)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map keyed by %s", ErrNotSerializable, rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeMap(buf, m, asciiOnly)
	}
	return fmt.Errorf("%w: %T", ErrNotSerializable, v)
}

func encodeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite float", ErrNotSerializable)
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func encodeSlice(buf *bytes.Buffer, items []any, asciiOnly bool) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, item, asciiOnly); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeMap(buf *bytes.Buffer, m map[string]any, asciiOnly bool) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeString(buf, k, asciiOnly)
		buf.WriteByte(':')
		if err := encodeValue(buf, m[k], asciiOnly); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeString(buf *bytes.Buffer, s string, asciiOnly bool) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r < 0x20:
				fmt.Fprintf(buf, `\u%04x`, r)
			case r < utf8.RuneSelf || !asciiOnly:
				buf.WriteRune(r)
			case r > 0xFFFF:
				// Outside the BMP: escape as a UTF-16 surrogate pair.
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(buf, `\u%04x\u%04x`, hi, lo)
			default:
				fmt.Fprintf(buf, `\u%04x`, r)
			}
		}
	}
	buf.WriteByte('"')
}
