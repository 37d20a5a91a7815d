package sea

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// GraphWriter is the minimal surface sea needs to place a user's keypair
// and profile into the graph. pkg/gun's chain type satisfies this so sea
// never has to import the chain package back.
type GraphWriter interface {
	PutAt(soul string, fields map[string]any) error
	OnceAt(soul string) (map[string]any, bool, error)
}

// User is an authenticated identity: its BLS/X25519 keypair plus the soul
// its profile node lives at (per spec §4.5, "~"+pub).
type User struct {
	Alias string
	Pair  *Pair
	Soul  string
}

const userSaltLength = 16

// CreateUser derives a deterministic keypair from (alias, password) via
// work(), stores a salted password hash alongside the public keys at the
// user's "~pub" soul, and returns the resulting User. Re-running
// CreateUser with the same alias/password on the same graph produces an
// AuthFailed-free Authenticate, since the keypair is reproducible.
func CreateUser(g GraphWriter, alias, password string) (*User, error) {
	// The salt is derived from the alias alone, so the same (alias,
	// password) always yields the same keypair and therefore the same soul.
	aliasDigest := sha256.Sum256([]byte("gungo/user-salt\x00" + alias))
	salt := aliasDigest[:userSaltLength]

	seed, _, err := Work(alias+"\x00"+password, salt, WorkOptions{Name: "PBKDF2"})
	if err != nil {
		return nil, fmt.Errorf("sea: derive user seed: %w", err)
	}
	seedBytes, err := base64.RawURLEncoding.DecodeString(seed)
	if err != nil {
		return nil, fmt.Errorf("sea: decode derived seed: %w", err)
	}

	pair, err := PairFromSeed(seedBytes)
	if err != nil {
		return nil, fmt.Errorf("sea: derive user keypair: %w", err)
	}

	pwHash, err := HashPassword(password, salt)
	if err != nil {
		return nil, fmt.Errorf("sea: hash user password: %w", err)
	}

	soul := "~" + pair.Pub
	fields := map[string]any{
		"alias": alias,
		"pub":   pair.Pub,
		"epub":  pair.Epub,
		"auth": map[string]any{
			"salt": base64.RawURLEncoding.EncodeToString(salt),
			"hash": pwHash,
		},
	}
	if err := g.PutAt(soul, fields); err != nil {
		return nil, fmt.Errorf("sea: store user profile: %w", err)
	}

	return &User{Alias: alias, Pair: pair, Soul: soul}, nil
}

// Authenticate loads the user profile at soul, verifies password against
// the stored salted hash, and returns the user's keypair derived the same
// way CreateUser derived it. It does not require the caller to have saved
// the private key anywhere: it is regenerated from (alias, password).
func Authenticate(g GraphWriter, alias, password, soul string) (*User, error) {
	fields, ok, err := g.OnceAt(soul)
	if err != nil {
		return nil, fmt.Errorf("sea: load user profile: %w", err)
	}
	if !ok {
		return nil, ErrAuthFailed
	}

	authRaw, ok := fields["auth"].(map[string]any)
	if !ok {
		return nil, ErrAuthFailed
	}
	saltStr, _ := authRaw["salt"].(string)
	hash, _ := authRaw["hash"].(string)
	salt, err := base64.RawURLEncoding.DecodeString(saltStr)
	if err != nil {
		return nil, ErrAuthFailed
	}

	ok, err = VerifyPassword(password, salt, hash)
	if err != nil {
		return nil, fmt.Errorf("sea: verify password: %w", err)
	}
	if !ok {
		return nil, ErrAuthFailed
	}

	seed, _, err := Work(alias+"\x00"+password, salt, WorkOptions{Name: "PBKDF2"})
	if err != nil {
		return nil, fmt.Errorf("sea: derive user seed: %w", err)
	}
	seedBytes, err := base64.RawURLEncoding.DecodeString(seed)
	if err != nil {
		return nil, fmt.Errorf("sea: decode derived seed: %w", err)
	}
	pair, err := PairFromSeed(seedBytes)
	if err != nil {
		return nil, fmt.Errorf("sea: derive user keypair: %w", err)
	}

	return &User{Alias: alias, Pair: pair, Soul: soul}, nil
}

// Recall rebuilds a User's keypair from an alias and password without
// touching the graph, for callers that already know the profile soul and
// only need the keys (e.g. to sign a write before it is visible anywhere).
func Recall(alias, password string, salt []byte) (*Pair, error) {
	seed, _, err := Work(alias+"\x00"+password, salt, WorkOptions{Name: "PBKDF2"})
	if err != nil {
		return nil, fmt.Errorf("sea: derive user seed: %w", err)
	}
	seedBytes, err := base64.RawURLEncoding.DecodeString(seed)
	if err != nil {
		return nil, fmt.Errorf("sea: decode derived seed: %w", err)
	}
	return PairFromSeed(seedBytes)
}
