package sea

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

// deriveSymmetricKey turns a 32-byte secret (self-derived or ECDH shared
// secret) into a chacha20poly1305 key via SHA-256, matching Synnergy's
// "key must be 32 bytes" contract in core/security.go.
func deriveSymmetricKey(secret []byte) [chacha20poly1305.KeySize]byte {
	return sha256.Sum256(secret)
}

// sharedSecret performs the X25519 ECDH step between our epriv and their
// epub.
func sharedSecret(epriv, theirEpub [32]byte) ([]byte, error) {
	shared, err := curve25519.X25519(epriv[:], theirEpub[:])
	if err != nil {
		return nil, fmt.Errorf("sea: ecdh: %w", err)
	}
	return shared, nil
}

// Encrypt seals value for pair's owner. When theirEpub is empty, it
// self-encrypts with a key derived from the owner's own epriv; otherwise
// it derives an ECDH shared key with theirEpub.
func Encrypt(value any, pair *Pair, theirEpub string) (string, error) {
	jv, err := toJSONValue(value)
	if err != nil {
		return "", fmt.Errorf("sea: encrypt: %w", err)
	}
	plaintext := []byte(canonicalJSON(jv))

	epriv, err := decodeEpriv(pair.Epriv)
	if err != nil {
		return "", err
	}

	var secret []byte
	if theirEpub == "" {
		secret = epriv[:]
	} else {
		theirs, err := decodeEpub(theirEpub)
		if err != nil {
			return "", err
		}
		secret, err = sharedSecret(epriv, theirs)
		if err != nil {
			return "", err
		}
	}

	key := deriveSymmetricKey(secret)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return "", fmt.Errorf("sea: new aead: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("sea: nonce: %w", err)
	}

	ct := aead.Seal(nil, nonce, plaintext, nil)
	blob := append(nonce, ct...)
	return base64.RawURLEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt, using the same pairing of
// local epriv and theirEpub used to encrypt.
func Decrypt(ciphertext string, pair *Pair, theirEpub string) (any, error) {
	blob, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("sea: decode ciphertext: %w", err)
	}

	epriv, err := decodeEpriv(pair.Epriv)
	if err != nil {
		return nil, err
	}

	var secret []byte
	if theirEpub == "" {
		secret = epriv[:]
	} else {
		theirs, err := decodeEpub(theirEpub)
		if err != nil {
			return nil, err
		}
		secret, err = sharedSecret(epriv, theirs)
		if err != nil {
			return nil, err
		}
	}

	key := deriveSymmetricKey(secret)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("sea: new aead: %w", err)
	}

	minLen := chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(blob) < minLen {
		return nil, fmt.Errorf("sea: ciphertext too short")
	}
	nonce, ct := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]

	plaintext, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("sea: decrypt: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(plaintext, &decoded); err != nil {
		return nil, fmt.Errorf("sea: decode plaintext: %w", err)
	}
	return decoded, nil
}
