package graph

import (
	"strconv"
	"strings"

	"gungo/internal/gunerr"
)

// Soul syntax, per spec §3 and §6: `^[^/]+$`, reserved prefixes `#` (hash)
// and `~` (user), optional `<?<digits>` expiration suffix.

const (
	hashPrefix = "#"
	userPrefix = "~"
	expireSep  = "<?"
)

// SoulKind classifies the syntactic family of a soul.
type SoulKind int

const (
	KindPlain SoulKind = iota
	KindHash
	KindUser
)

// ParsedSoul is a soul decomposed into its syntactic parts.
type ParsedSoul struct {
	Raw        string
	Kind       SoulKind
	Ident      string // the hash or pubkey, without its prefix; empty for KindPlain
	ExpireSecs int64  // 0 if no expiration suffix
	HasExpiry  bool
}

// ParseSoul validates and decomposes a soul string.
func ParseSoul(soul string) (ParsedSoul, error) {
	if soul == "" || strings.Contains(soul, "/") {
		return ParsedSoul{}, gunerr.New(gunerr.InvalidSoul, soul, "soul must be non-empty and contain no '/'", nil)
	}

	body := soul
	var p ParsedSoul
	p.Raw = soul

	if idx := strings.Index(body, expireSep); idx >= 0 {
		digits := body[idx+len(expireSep):]
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || n < 0 {
			return ParsedSoul{}, gunerr.New(gunerr.InvalidSoul, soul, "malformed expiration suffix", err)
		}
		p.HasExpiry = true
		p.ExpireSecs = n
		body = body[:idx]
	}

	switch {
	case strings.HasPrefix(body, hashPrefix):
		p.Kind = KindHash
		p.Ident = body[len(hashPrefix):]
		if p.Ident == "" {
			return ParsedSoul{}, gunerr.New(gunerr.InvalidSoul, soul, "hash soul missing digest", nil)
		}
	case strings.HasPrefix(body, userPrefix):
		p.Kind = KindUser
		p.Ident = body[len(userPrefix):]
		if p.Ident == "" {
			return ParsedSoul{}, gunerr.New(gunerr.InvalidSoul, soul, "user soul missing pubkey", nil)
		}
	default:
		p.Kind = KindPlain
	}
	return p, nil
}

// HashSoul builds a hash-family soul from a base64url-ish digest string.
func HashSoul(digest string) string { return hashPrefix + digest }

// UserSoul builds a user-family soul from a public key string.
func UserSoul(pub string) string { return userPrefix + pub }

// WithExpiry appends an expiration suffix to soul.
func WithExpiry(soul string, secs int64) string {
	return soul + expireSep + strconv.FormatInt(secs, 10)
}
