package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DecodeJSON parses JSON bytes into a Value, preserving object key order.
// Numbers without a fractional or exponent part decode as Int; everything
// else numeric decodes as Float. Trailing non-whitespace after the first
// value is an error.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}

	// Reject trailing content
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected content after top-level value")
	}
	return v, nil
}

// decodeValue reads one complete value from the token stream. Objects are
// rebuilt field by field so insertion order survives, which encoding/json's
// map decoding would destroy.
func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	case json.Number:
		return numberValue(t)
	default:
		return nil, fmt.Errorf("unexpected token type %T", tok)
	}
}

func decodeObject(dec *json.Decoder) (Value, error) {
	obj := NewObject()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("object key %q: %w", key, err)
		}
		obj.Set(key, val)
	}
	// Consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	arr := Array{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("array index %d: %w", len(arr), err)
		}
		arr = append(arr, val)
	}
	// Consume closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func numberValue(n json.Number) (Value, error) {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", s, err)
		}
		return Float(f), nil
	}
	i, err := n.Int64()
	if err != nil {
		// Integer out of int64 range, fall back to float
		f, ferr := n.Float64()
		if ferr != nil {
			return nil, fmt.Errorf("invalid number %q: %w", s, ferr)
		}
		return Float(f), nil
	}
	return Int(i), nil
}

// EncodeJSON serializes a Value to JSON bytes with object keys in
// insertion order and HTML escaping disabled. Inverse of DecodeJSON.
func EncodeJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeJSONIndent is EncodeJSON followed by json.Indent, for output files
// meant to be read by humans.
func EncodeJSONIndent(v Value, indent string) ([]byte, error) {
	compact, err := EncodeJSON(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case Null:
		buf.WriteString("null")
		return nil
	case String:
		return writeJSONString(buf, string(val))
	case Int:
		b, err := json.Marshal(int64(val))
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case Float:
		b, err := json.Marshal(float64(val))
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case Bool:
		b, err := json.Marshal(bool(val))
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case *Object:
		buf.WriteByte('{')
		for i, key := range val.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			field, _ := val.Get(key)
			if err := encodeValue(buf, field); err != nil {
				return fmt.Errorf("object key %q: %w", key, err)
			}
		}
		buf.WriteByte('}')
		return nil
	case nil:
		return fmt.Errorf("nil Value: use Null{}")
	default:
		return fmt.Errorf("unknown Value type: %T", v)
	}
}

// writeJSONString marshals a string without HTML escaping.
func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder adds a trailing newline, remove it
	buf.Truncate(buf.Len() - 1)
	return nil
}
