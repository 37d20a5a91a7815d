package sea

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// canonicalJSON renders an arbitrary decoded JSON value (as produced by
// encoding/json into `any`) deterministically: object keys sorted
// lexicographically, no whitespace, numbers minimal decimal. This is the
// byte string SEA signs and hashes — it must be stable across processes
// and across Go/JS/Rust implementations working from the same JSON value.
func canonicalJSON(v any) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case float64:
		b.WriteString(formatNumber(t))
	case string:
		b.WriteString(strconv.Quote(t))
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, t[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	default:
		// Fallback for Go-native values passed directly (not round-tripped
		// through JSON yet): marshal then re-decode so formatting matches.
		data, err := json.Marshal(t)
		if err != nil {
			b.WriteString(fmt.Sprintf("%q", fmt.Sprintf("%v", t)))
			return
		}
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			b.Write(data)
			return
		}
		writeCanonical(b, decoded)
	}
}

func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// toJSONValue normalizes v (which may be a Go struct, map, or primitive)
// into the `any` decoded-JSON shape canonicalJSON expects.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
