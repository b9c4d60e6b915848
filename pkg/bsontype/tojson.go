package bsontype

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
)

// ToJSON renders a Document as JSON, preserving key order. This is the
// counterpart to FromJSON: a stand-in for the binary wire codec, used only
// by the demonstration CLI/HTTP transport in cmd/jongodb.
func ToJSON(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeDocument(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeDocument(buf *bytes.Buffer, d *Document) error {
	buf.WriteByte('{')
	if d != nil {
		for i, e := range d.elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, e.Key)
			buf.WriteByte(':')
			if err := writeValue(buf, e.Value); err != nil {
				return fmt.Errorf("field %q: %w", e.Key, err)
			}
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeArray(buf *bytes.Buffer, vs []Value) error {
	buf.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		b, _ := v.AsBool()
		buf.WriteString(strconv.FormatBool(b))
	case KindInt32:
		i, _ := v.AsInt32()
		buf.WriteString(strconv.FormatInt(int64(i), 10))
	case KindInt64:
		i, _ := v.AsInt64()
		buf.WriteString(strconv.FormatInt(i, 10))
	case KindDouble, KindDecimal:
		f, _ := v.AsFloat64()
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case KindString:
		s, _ := v.AsString()
		writeJSONString(buf, s)
	case KindBinary:
		b, _ := v.AsBinary()
		writeJSONString(buf, base64.StdEncoding.EncodeToString(b))
	case KindTimestamp:
		buf.WriteString(strconv.FormatUint(v.tsVal, 10))
	case KindDateTime:
		t, _ := v.AsDateTime()
		writeJSONString(buf, t.UTC().Format("2006-01-02T15:04:05.000Z"))
	case KindObjectID:
		id, _ := v.AsObjectID()
		writeJSONString(buf, id.Hex())
	case KindDocument:
		doc, _ := v.AsDocument()
		return writeDocument(buf, doc)
	case KindArray:
		arr, _ := v.AsArray()
		return writeArray(buf, arr)
	default:
		return fmt.Errorf("unsupported value kind %v", v.kind)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\t':
			buf.WriteString(`\t`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
