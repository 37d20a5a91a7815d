package graph

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// formatNumber renders f as minimal decimal with no trailing zeros, per
// the canonical serialization rule in spec §6.
func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// canonicalFieldValue renders one field value the way CanonicalValue does,
// but as valid embeddable JSON-ish text rather than a tiebreak key: used
// when building the byte string that gets hashed or signed.
func canonicalFieldValue(v Value) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(t)
	case string:
		return strconv.Quote(t)
	case Edge:
		return `{"#":` + strconv.Quote(t.Soul) + `}`
	default:
		return fmt.Sprintf("%v", t)
	}
}

// canonicalBody renders a node's fields, sorted lexicographically by
// field name, with no whitespace. includeMeta controls whether "_" is
// part of the output (excluded by CanonicalForHash, included by
// CanonicalForSign).
func canonicalBody(n *Node, includeMeta bool) string {
	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	if includeMeta {
		b.WriteString(`"_":{"#":`)
		b.WriteString(strconv.Quote(n.Meta.Soul))
		b.WriteString(`,">":{`)
		stateKeys := make([]string, 0, len(n.Meta.States))
		for k := range n.Meta.States {
			stateKeys = append(stateKeys, k)
		}
		sort.Strings(stateKeys)
		for i, k := range stateKeys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			b.WriteString(formatNumber(n.Meta.States[k]))
		}
		b.WriteString("}}")
		if len(keys) > 0 {
			b.WriteByte(',')
		}
	}
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.WriteString(canonicalFieldValue(n.Fields[k]))
	}
	b.WriteByte('}')
	return b.String()
}

// CanonicalForHash is the serialization used for #-soul content addressing:
// the "_" metadata field is excluded.
func CanonicalForHash(n *Node) string { return canonicalBody(n, false) }

// CanonicalForSign is the node serialization with "_" included. The
// user-space write path (pkg/gun's PutSigned, PutCertified and
// verifyUserWrite) does not call it: those sign and verify the
// non-reserved fields through sea's own canonical JSON, without "_".
func CanonicalForSign(n *Node) string { return canonicalBody(n, true) }

// HashOf computes the base64url-no-padding SHA-256 digest of s, the form
// used in hash souls.
func HashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyHashSoul checks that node's hash-content serialization hashes to
// the digest named by its own soul.
func VerifyHashSoul(n *Node) bool {
	parsed, err := ParseSoul(n.Meta.Soul)
	if err != nil || parsed.Kind != KindHash {
		return true // not a hash soul; nothing to verify
	}
	return HashOf(CanonicalForHash(n)) == parsed.Ident
}
