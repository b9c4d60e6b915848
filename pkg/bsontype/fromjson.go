package bsontype

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FromJSON decodes a JSON object into a Document. This is a stand-in for
// the binary wire codec (an external collaborator per spec §6); it exists
// only to drive the command pipeline from the demonstration CLI/HTTP
// transport in cmd/jongodb. Key order is preserved because decoding walks
// json.Token stream order rather than unmarshalling into a Go map.
func FromJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode command json: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("command json: expected object, got %v", tok)
	}
	doc, err := decodeObject(dec)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeObject(dec *json.Decoder) (*Document, error) {
	doc := &Document{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("command json: expected object key, got %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		doc.Set(key, val)
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeArray(dec *json.Decoder) ([]Value, error) {
	var vals []Value
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return vals, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			doc, err := decodeObject(dec)
			if err != nil {
				return Value{}, err
			}
			return DocumentValue(doc), nil
		case '[':
			arr, err := decodeArray(dec)
			if err != nil {
				return Value{}, err
			}
			return Array(arr...), nil
		default:
			return Value{}, fmt.Errorf("command json: unexpected delimiter %v", t)
		}
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			if i >= -(1<<31) && i < (1<<31) {
				return Int32(int32(i)), nil
			}
			return Int64(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("command json: invalid number %q: %w", t, err)
		}
		return Double(f), nil
	default:
		return Value{}, fmt.Errorf("command json: unsupported token %T", tok)
	}
}
