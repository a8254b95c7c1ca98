package crypto

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize encodes a signing view as canonical JSON: keys sorted, strings
// NFC-normalized, nil map values dropped, integers only.
//
// Signing views are built from map[string]any, []any, []string, string, bool,
// and the integer kinds; anything else is rejected.
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch value := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return writeString(buf, value)
	case bool:
		buf.WriteString(strconv.FormatBool(value))
	case int:
		buf.WriteString(strconv.Itoa(value))
	case int64:
		buf.WriteString(strconv.FormatInt(value, 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(value), 10))
	case json.Number:
		if strings.ContainsAny(value.String(), ".eE") {
			return ErrFloatNotAllowed
		}
		n, err := strconv.ParseInt(value.String(), 10, 64)
		if err != nil {
			return ErrFloatNotAllowed
		}
		buf.WriteString(strconv.FormatInt(n, 10))
	case float32, float64:
		return ErrFloatNotAllowed
	case []string:
		if value == nil {
			buf.WriteString("null")
			return nil
		}
		items := make([]any, len(value))
		for i, s := range value {
			items[i] = s
		}
		return writeSlice(buf, items)
	case []any:
		if value == nil {
			buf.WriteString("null")
			return nil
		}
		return writeSlice(buf, value)
	case map[string]any:
		return writeMap(buf, value)
	default:
		return ErrUnsupportedType
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(norm.NFC.String(s))
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

func writeSlice(buf *bytes.Buffer, items []any) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	normalized := make(map[string]any, len(m))
	for key, val := range m {
		if val == nil {
			continue
		}
		nk := norm.NFC.String(key)
		if _, ok := normalized[nk]; ok {
			return ErrKeyCollision
		}
		normalized[nk] = val
		keys = append(keys, nk)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, normalized[key]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
