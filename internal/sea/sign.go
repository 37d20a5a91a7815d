package sea

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/herumi/bls-eth-go-binary/bls"
)

// Signed is the wire shape a signed value takes: {":": value, "~": sig}.
type Signed struct {
	Value     any    `json:"-"`
	Signature string `json:"-"`
}

// MarshalJSON renders Signed as {":": value, "~": signature}.
func (s Signed) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{":": s.Value, "~": s.Signature})
}

// UnmarshalJSON parses the {":": value, "~": signature} shape.
func (s *Signed) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value     any    `json:":"`
		Signature string `json:"~"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Value = raw.Value
	s.Signature = raw.Signature
	return nil
}

// Sign signs value's canonical JSON serialization with pair's private key,
// returning the {":": value, "~": signature} wrapper described in §4.5.
func Sign(value any, pair *Pair) (*Signed, error) {
	if err := ensureBLSInit(); err != nil {
		return nil, fmt.Errorf("sea: bls init: %w", err)
	}
	sk, err := decodeSecretKey(pair.Priv)
	if err != nil {
		return nil, err
	}

	jv, err := toJSONValue(value)
	if err != nil {
		return nil, fmt.Errorf("sea: sign: %w", err)
	}
	msg := []byte(canonicalJSON(jv))

	sig := sk.SignByte(msg)
	return &Signed{
		Value:     jv,
		Signature: base64.RawURLEncoding.EncodeToString(sig.Serialize()),
	}, nil
}

// Verify checks signed's signature under pub and returns the recovered
// value, or a SignatureInvalid error if verification fails.
func Verify(signed *Signed, pub string) (any, error) {
	if err := ensureBLSInit(); err != nil {
		return nil, fmt.Errorf("sea: bls init: %w", err)
	}
	pk, err := decodePublicKey(pub)
	if err != nil {
		return nil, err
	}

	rawSig, err := base64.RawURLEncoding.DecodeString(signed.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed signature encoding", ErrSignatureInvalid)
	}
	var sig bls.Sign
	if err := sig.Deserialize(rawSig); err != nil {
		return nil, fmt.Errorf("%w: malformed signature bytes", ErrSignatureInvalid)
	}

	jv, err := toJSONValue(signed.Value)
	if err != nil {
		return nil, fmt.Errorf("sea: verify: %w", err)
	}
	msg := []byte(canonicalJSON(jv))
	if !sig.VerifyByte(pk, msg) {
		return nil, ErrSignatureInvalid
	}
	return jv, nil
}
