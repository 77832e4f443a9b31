// Package canon implements the v0 canonical JSON form that gives every
// receipt its byte identity. All evidence documents pass through MarshalV0
// before being digested or written, so the rules here are frozen: sorted
// object keys under CompareV0, minimal string escaping, integers only, no
// floats, no HTML escaping.
//
// This package has zero dependencies outside the stdlib. It contains no
// business logic; every other evidence package builds on it.
package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrFloatForbidden is returned when a value reachable from the input
// contains a non-integral number. Receipts carry only integers and booleans.
var ErrFloatForbidden = errors.New("canon: non-integral number forbidden in canonical form")

// CompareV0 is the total string order used for every sorted surface in the
// evidence format: object keys, reason codes, receipt tables, external refs.
// It orders by raw UTF-8 code units (byte-wise on the encoded form) and
// breaks the prefix tie by length. The result is locale-independent and
// stable across platforms.
func CompareV0(a, b string) int {
	la, lb := len(a), len(b)
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return 0
	}
}

// LessV0 reports whether a orders before b under CompareV0.
func LessV0(a, b string) bool { return CompareV0(a, b) < 0 }

// StableSortUniqueV0 produces the deterministic list form used for reason
// codes, external refs, policy tokens, and denied capability ids: entries are
// trimmed, empties dropped, duplicates removed keeping the first occurrence,
// and the survivors sorted under CompareV0. The input slice is not modified.
// Applying the function twice yields the same result as applying it once.
func StableSortUniqueV0(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return LessV0(out[i], out[j]) })
	return out
}

// MarshalV0 renders v in canonical JSON: object keys ascending under
// CompareV0, strings with minimal JSON escapes (no HTML escaping, no \u
// re-encoding of valid non-ASCII), numbers as the shortest decimal integer,
// and no insignificant whitespace. Arrays preserve their element order; any
// list requiring the sorted-unique form must go through StableSortUniqueV0
// before marshalling.
//
// Struct values are accepted and are first flattened through their JSON
// field tags. Any non-integral number anywhere in the value yields
// ErrFloatForbidden.
func MarshalV0(v any) ([]byte, error) {
	norm, err := normalize(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encode(&buf, norm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalize flattens v into the small tree of types the encoder understands:
// map[string]any, []any, string, bool, int64, nil. Structs and typed values
// are round-tripped through encoding/json with UseNumber so that field tags
// and omitempty behave exactly as they do on the decode side.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return t, nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case json.Number:
		return numberToInt64(t)
	case float64:
		// float64 is how encoding/json surfaces numbers without UseNumber;
		// only exact integers are representable in a receipt.
		i := int64(t)
		if float64(i) != t {
			return nil, ErrFloatForbidden
		}
		return i, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			n, err := normalize(val)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalize(val)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	default:
		return roundTrip(v)
	}
}

// roundTrip pushes an arbitrary typed value through encoding/json so struct
// tags apply, then re-normalizes the generic result.
func roundTrip(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal intermediate: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: decode intermediate: %w", err)
	}
	return normalize(generic)
}

func numberToInt64(n json.Number) (int64, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		return 0, ErrFloatForbidden
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("canon: number %q out of range: %w", s, err)
	}
	return i, nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case string:
		return encodeString(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.SliceStable(keys, func(i, j int) bool { return LessV0(keys[i], keys[j]) })
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canon: unencodable type %T", v)
	}
	return nil
}

// encodeString emits s with the minimal escape set: the two mandatory
// characters, the C0 control range, and nothing else. Valid non-ASCII UTF-8
// passes through unre-encoded.
func encodeString(buf *bytes.Buffer, s string) error {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			buf.WriteString(`\"`)
		case c == '\\':
			buf.WriteString(`\\`)
		case c == '\n':
			buf.WriteString(`\n`)
		case c == '\r':
			buf.WriteString(`\r`)
		case c == '\t':
			buf.WriteString(`\t`)
		case c < 0x20:
			fmt.Fprintf(buf, `\u%04x`, c)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
	return nil
}
