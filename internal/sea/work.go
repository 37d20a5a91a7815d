package sea

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// WorkOptions configures the work() hashing primitive from spec §4.5.
type WorkOptions struct {
	Name       string // "SHA-256" or "PBKDF2"
	Iterations int    // PBKDF2 only; default 100000 when zero
	Length     int    // PBKDF2 derived-key length in bytes; default 32 when zero
}

const defaultPBKDF2Iterations = 100000
const defaultPBKDF2Length = 32

// Work computes SHA-256 or PBKDF2-SHA256 over data with salt, generating a
// fresh random salt when none is supplied. The result is deterministic for
// a fixed (data, salt, opts) triple and varies when salt is generated.
func Work(data string, salt []byte, opts WorkOptions) (digest string, usedSalt []byte, err error) {
	if salt == nil {
		salt = make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return "", nil, fmt.Errorf("sea: generate salt: %w", err)
		}
	}

	switch opts.Name {
	case "", "SHA-256":
		h := sha256.Sum256(append([]byte(data), salt...))
		return base64.RawURLEncoding.EncodeToString(h[:]), salt, nil
	case "PBKDF2":
		iterations := opts.Iterations
		if iterations == 0 {
			iterations = defaultPBKDF2Iterations
		}
		length := opts.Length
		if length == 0 {
			length = defaultPBKDF2Length
		}
		derived := pbkdf2.Key([]byte(data), salt, iterations, length, sha256.New)
		return base64.RawURLEncoding.EncodeToString(derived), salt, nil
	default:
		return "", nil, fmt.Errorf("sea: unknown work algorithm %q", opts.Name)
	}
}

// HashPassword derives a PBKDF2 hash for pw under salt, for storage
// alongside a user record.
func HashPassword(pw string, salt []byte) (string, error) {
	digest, _, err := Work(pw, salt, WorkOptions{Name: "PBKDF2"})
	return digest, err
}

// VerifyPassword reports whether pw re-hashes to hash under salt.
func VerifyPassword(pw string, salt []byte, hash string) (bool, error) {
	digest, err := HashPassword(pw, salt)
	if err != nil {
		return false, err
	}
	return digest == hash, nil
}
