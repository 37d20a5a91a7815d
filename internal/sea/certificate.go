package sea

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// Certificate grants who the right to write to souls matching what,
// signed by the issuer's key, per spec §4.5. who is either a specific
// pub key or "*" for any writer; what is a path pattern using "*" as a
// single-segment wildcard (e.g. "chatroom/*/messages").
type Certificate struct {
	Who       string `json:"who"`
	What      string `json:"what"`
	ExpiresAt int64  `json:"expiresAt,omitempty"` // unix seconds, 0 = never
	Signed    *Signed
}

// certBody is the canonical payload that gets signed/verified, excluding
// the signature itself.
type certBody struct {
	Who       string `json:"who"`
	What      string `json:"what"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// Certify issues a Certificate authorizing who to write under the what
// path pattern, signed by issuer.
func Certify(issuer *Pair, who, what string, expiresAt time.Time) (*Certificate, error) {
	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.Unix()
	}
	body := certBody{Who: who, What: what, ExpiresAt: exp}
	signed, err := Sign(body, issuer)
	if err != nil {
		return nil, fmt.Errorf("sea: certify: %w", err)
	}
	return &Certificate{Who: who, What: what, ExpiresAt: exp, Signed: signed}, nil
}

// VerifyCertificate checks the certificate's signature against issuerPub,
// and that it authorizes writerPub to write at soulPath at now. Returns
// ErrSignatureInvalid, ErrCertExpired, or ErrCertDenied as appropriate.
func VerifyCertificate(cert *Certificate, issuerPub, writerPub, soulPath string, now time.Time) error {
	if _, err := Verify(cert.Signed, issuerPub); err != nil {
		return err
	}
	if cert.ExpiresAt != 0 && now.Unix() > cert.ExpiresAt {
		return ErrCertExpired
	}
	if cert.Who != "*" && cert.Who != writerPub {
		return fmt.Errorf("%w: issued to a different writer", ErrCertDenied)
	}
	if !matchPathPattern(cert.What, soulPath) {
		return fmt.Errorf("%w: path %q not covered by %q", ErrCertDenied, soulPath, cert.What)
	}
	return nil
}

// EncodeCertificate serializes cert to a string so it can travel as an
// ordinary node field value -- the flat node model has no place for a
// nested object, so a delegated write carries its certificate as a JSON
// string rather than a structured value.
func EncodeCertificate(cert *Certificate) (string, error) {
	data, err := json.Marshal(cert)
	if err != nil {
		return "", fmt.Errorf("sea: encode certificate: %w", err)
	}
	return string(data), nil
}

// DecodeCertificate parses a certificate previously produced by
// EncodeCertificate.
func DecodeCertificate(s string) (*Certificate, error) {
	var cert Certificate
	if err := json.Unmarshal([]byte(s), &cert); err != nil {
		return nil, fmt.Errorf("sea: decode certificate: %w", err)
	}
	return &cert, nil
}

// matchPathPattern matches a "/"-segmented soul path against a pattern
// where "*" matches exactly one segment and a trailing "**" matches any
// number of remaining segments.
func matchPathPattern(pattern, soulPath string) bool {
	patSegs := splitPath(pattern)
	pathSegs := splitPath(soulPath)

	for i, p := range patSegs {
		if p == "**" {
			return true
		}
		if i >= len(pathSegs) {
			return false
		}
		if p != "*" && p != pathSegs[i] {
			matched, err := path.Match(p, pathSegs[i])
			if err != nil || !matched {
				return false
			}
		}
	}
	return len(patSegs) == len(pathSegs)
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
