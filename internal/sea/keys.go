// Package sea implements gungo's Security, Encryption, Authorization
// primitives: keypairs, signatures, encryption, work functions, user
// spaces, and certificates, per spec §4.5.
//
// Signing and the BLS12-381 keypair are grounded on Synnergy's
// core/security.go, which wires github.com/herumi/bls-eth-go-binary/bls
// for exactly this "BLS-family pair" role the spec calls for. Encryption
// reuses Synnergy's XChaCha20-Poly1305 choice from the same file; ECDH key
// agreement and PBKDF2 come from golang.org/x/crypto, already a Synnergy
// dependency.
package sea

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/herumi/bls-eth-go-binary/bls"
	"golang.org/x/crypto/curve25519"
)

var blsInitOnce sync.Once
var blsInitErr error

func ensureBLSInit() error {
	blsInitOnce.Do(func() {
		blsInitErr = bls.Init(bls.BLS12_381)
	})
	return blsInitErr
}

// Pair is a keypair: pub/priv are the BLS signing keys (used for sign and
// verify and for naming user souls), epub/epriv are X25519 keys used for
// ECDH-derived encryption.
type Pair struct {
	Pub   string `json:"pub"`
	Priv  string `json:"priv"`
	Epub  string `json:"epub"`
	Epriv string `json:"epriv"`
}

// NewPair generates a fresh random keypair: a BLS12-381 signing key and an
// X25519 encryption key, both base64-encoded for wire/storage use.
func NewPair() (*Pair, error) {
	if err := ensureBLSInit(); err != nil {
		return nil, fmt.Errorf("sea: bls init: %w", err)
	}

	var sk bls.SecretKey
	sk.SetByCSPRNG()
	pk := sk.GetPublicKey()

	var epriv [32]byte
	if _, err := rand.Read(epriv[:]); err != nil {
		return nil, fmt.Errorf("sea: generate epriv: %w", err)
	}
	var epub [32]byte
	curve25519.ScalarBaseMult(&epub, &epriv)

	return &Pair{
		Pub:   base64.RawURLEncoding.EncodeToString(pk.Serialize()),
		Priv:  base64.RawURLEncoding.EncodeToString(sk.Serialize()),
		Epub:  base64.RawURLEncoding.EncodeToString(epub[:]),
		Epriv: base64.RawURLEncoding.EncodeToString(epriv[:]),
	}, nil
}

// PairFromSeed deterministically derives a keypair from a fixed 32-byte
// seed, used by createUser/authenticate to regenerate the same identity
// from (alias, password) via work().
func PairFromSeed(seed []byte) (*Pair, error) {
	if err := ensureBLSInit(); err != nil {
		return nil, fmt.Errorf("sea: bls init: %w", err)
	}
	if len(seed) < 32 {
		padded := make([]byte, 32)
		copy(padded, seed)
		seed = padded
	}

	var sk bls.SecretKey
	sk.SetByCSPRNG() // overwritten by SetLittleEndian below; a rejected seed is an error, never replaced by this value
	if err := sk.SetLittleEndian(seed[:32]); err != nil {
		return nil, fmt.Errorf("sea: derive bls key from seed: %w", err)
	}
	pk := sk.GetPublicKey()

	var epriv [32]byte
	copy(epriv[:], seed[:32])
	// Clamp per RFC 7748 so the scalar lands in the valid X25519 subgroup.
	epriv[0] &= 248
	epriv[31] &= 127
	epriv[31] |= 64
	var epub [32]byte
	curve25519.ScalarBaseMult(&epub, &epriv)

	return &Pair{
		Pub:   base64.RawURLEncoding.EncodeToString(pk.Serialize()),
		Priv:  base64.RawURLEncoding.EncodeToString(sk.Serialize()),
		Epub:  base64.RawURLEncoding.EncodeToString(epub[:]),
		Epriv: base64.RawURLEncoding.EncodeToString(epriv[:]),
	}, nil
}

func decodeSecretKey(priv string) (*bls.SecretKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		return nil, fmt.Errorf("sea: decode priv: %w", err)
	}
	var sk bls.SecretKey
	if err := sk.Deserialize(raw); err != nil {
		return nil, fmt.Errorf("sea: deserialize priv: %w", err)
	}
	return &sk, nil
}

func decodePublicKey(pub string) (*bls.PublicKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		return nil, fmt.Errorf("sea: decode pub: %w", err)
	}
	var pk bls.PublicKey
	if err := pk.Deserialize(raw); err != nil {
		return nil, fmt.Errorf("sea: deserialize pub: %w", err)
	}
	return &pk, nil
}

func decodeEpriv(epriv string) ([32]byte, error) {
	var out [32]byte
	raw, err := base64.RawURLEncoding.DecodeString(epriv)
	if err != nil {
		return out, fmt.Errorf("sea: decode epriv: %w", err)
	}
	copy(out[:], raw)
	return out, nil
}

func decodeEpub(epub string) ([32]byte, error) {
	var out [32]byte
	raw, err := base64.RawURLEncoding.DecodeString(epub)
	if err != nil {
		return out, fmt.Errorf("sea: decode epub: %w", err)
	}
	copy(out[:], raw)
	return out, nil
}
