package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// ExtraInfoMarker introduces the optional trailer carrying run metadata
// (the global minified-name table) after the JSON tree.
const ExtraInfoMarker = "// EXTRA_INFO:"

// ExtraInfo is the metadata trailer that may follow the tree.
type ExtraInfo struct {
	Globals map[string]string `json:"globals"`
}

// Decode reads a JSON tree into arena nodes. Anything after the root value
// must be a line comment; an EXTRA_INFO comment is parsed and returned.
func Decode(a *Arena, data []byte) (*Node, *ExtraInfo, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := decodeValue(a, dec)
	if err != nil {
		return nil, nil, err
	}

	rest := bytes.TrimSpace(data[dec.InputOffset():])
	switch {
	case len(rest) == 0:
		return root, nil, nil
	case bytes.HasPrefix(rest, []byte(ExtraInfoMarker)):
		var info ExtraInfo
		if err := json.Unmarshal(rest[len(ExtraInfoMarker):], &info); err != nil {
			return nil, nil, fmt.Errorf("parsing extra info: %w", err)
		}
		return root, &info, nil
	case bytes.HasPrefix(rest, []byte("//")):
		return root, nil, nil
	}
	return nil, nil, fmt.Errorf("decoding tree: unexpected data after root value at offset %d", dec.InputOffset())
}

func decodeValue(a *Arena, dec *json.Decoder) (*Node, error) {
	var root *Node
	var stack []*Node
	for root == nil || len(stack) > 0 {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("decoding tree: unexpected end of input")
		}
		if err != nil {
			return nil, fmt.Errorf("decoding tree: %w", err)
		}

		var n *Node
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '[':
				n = a.Array()
			case ']':
				stack = stack[:len(stack)-1]
				continue
			default:
				return nil, fmt.Errorf("decoding tree: objects are not part of the tree format")
			}
		case string:
			n = a.Str(v)
		case json.Number:
			f, err := strconv.ParseFloat(string(v), 64)
			if err != nil {
				return nil, fmt.Errorf("decoding tree: bad number %s: %w", v, err)
			}
			n = a.Number(f)
		case bool:
			n = a.Bool(v)
		case nil:
			n = a.Null()
		}

		if root == nil {
			root = n
		} else {
			stack[len(stack)-1].Push(n)
		}
		if n.IsArray() {
			stack = append(stack, n)
		}
	}
	return root, nil
}

// Encode writes the node as compact JSON followed by a newline.
func Encode(w io.Writer, n *Node) error {
	buf := appendJSON(nil, n)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}

// Marshal returns the node as compact JSON.
func Marshal(n *Node) []byte {
	return appendJSON(nil, n)
}

func appendJSON(buf []byte, n *Node) []byte {
	switch n.Kind() {
	case KindNull:
		return append(buf, "null"...)
	case KindBool:
		return strconv.AppendBool(buf, n.b)
	case KindNumber:
		return append(buf, formatNumber(n.num)...)
	case KindString:
		return appendQuoted(buf, n.str)
	}
	buf = append(buf, '[')
	for i, c := range n.arr {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendJSON(buf, c)
	}
	return append(buf, ']')
}

const hexDigits = "0123456789abcdef"

// appendQuoted quotes s as a JSON string. Operators such as "<<" and "&"
// are written verbatim rather than HTML-escaped.
func appendQuoted(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			buf = append(buf, '\\', c)
		case c == '\n':
			buf = append(buf, '\\', 'n')
		case c == '\r':
			buf = append(buf, '\\', 'r')
		case c == '\t':
			buf = append(buf, '\\', 't')
		case c < 0x20:
			buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		default:
			buf = append(buf, c)
		}
	}
	return append(buf, '"')
}
