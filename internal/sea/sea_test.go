package sea

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGraph struct {
	nodes map[string]map[string]any
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{nodes: make(map[string]map[string]any)}
}

func (f *fakeGraph) PutAt(soul string, fields map[string]any) error {
	f.nodes[soul] = fields
	return nil
}

func (f *fakeGraph) OnceAt(soul string) (map[string]any, bool, error) {
	n, ok := f.nodes[soul]
	return n, ok, nil
}

func TestSignVerify_RoundTrip(t *testing.T) {
	pair, err := NewPair()
	require.NoError(t, err)

	signed, err := Sign(map[string]any{"hello": "world", "n": 3.0}, pair)
	require.NoError(t, err)

	got, err := Verify(signed, pair.Pub)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hello": "world", "n": 3.0}, got)
}

func TestVerify_TamperedSignatureRejected(t *testing.T) {
	pair, err := NewPair()
	require.NoError(t, err)

	signed, err := Sign("payload", pair)
	require.NoError(t, err)

	// Flip one character of the encoded signature.
	sig := []byte(signed.Signature)
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := string(sig)
	require.NotEqual(t, signed.Signature, tampered)
	signed.Signature = tampered

	_, err = Verify(signed, pair.Pub)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestEncryptDecrypt_SelfRoundTrip(t *testing.T) {
	pair, err := NewPair()
	require.NoError(t, err)

	ct, err := Encrypt(map[string]any{"secret": "value"}, pair, "")
	require.NoError(t, err)

	pt, err := Decrypt(ct, pair, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"secret": "value"}, pt)
}

func TestEncryptDecrypt_ECDHRoundTrip(t *testing.T) {
	alice, err := NewPair()
	require.NoError(t, err)
	bob, err := NewPair()
	require.NoError(t, err)

	ct, err := Encrypt("hi bob", alice, bob.Epub)
	require.NoError(t, err)

	pt, err := Decrypt(ct, bob, alice.Epub)
	require.NoError(t, err)
	assert.Equal(t, "hi bob", pt)
}

func TestWork_DeterministicWithFixedSalt(t *testing.T) {
	salt := []byte("0123456789abcdef")

	d1, _, err := Work("password", salt, WorkOptions{Name: "PBKDF2"})
	require.NoError(t, err)
	d2, _, err := Work("password", salt, WorkOptions{Name: "PBKDF2"})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestWork_RandomSaltVaries(t *testing.T) {
	d1, s1, err := Work("password", nil, WorkOptions{Name: "PBKDF2"})
	require.NoError(t, err)
	d2, s2, err := Work("password", nil, WorkOptions{Name: "PBKDF2"})
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
	assert.NotEqual(t, d1, d2)
}

func TestHashVerifyPassword(t *testing.T) {
	salt := []byte("fixedsaltfixed16")
	hash, err := HashPassword("correct horse", salt)
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse", salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateUserThenAuthenticate(t *testing.T) {
	g := newFakeGraph()

	u, err := CreateUser(g, "alice", "hunter2")
	require.NoError(t, err)

	got, err := Authenticate(g, "alice", "hunter2", u.Soul)
	require.NoError(t, err)
	assert.Equal(t, u.Pair.Pub, got.Pair.Pub)
}

func TestAuthenticate_WrongPasswordFails(t *testing.T) {
	g := newFakeGraph()
	u, err := CreateUser(g, "alice", "hunter2")
	require.NoError(t, err)

	_, err = Authenticate(g, "alice", "wrong", u.Soul)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestCertify_GrantsScopedWrite(t *testing.T) {
	issuer, err := NewPair()
	require.NoError(t, err)
	writer, err := NewPair()
	require.NoError(t, err)

	cert, err := Certify(issuer, writer.Pub, "rooms/*/messages", time.Time{})
	require.NoError(t, err)

	err = VerifyCertificate(cert, issuer.Pub, writer.Pub, "rooms/general/messages", time.Now())
	assert.NoError(t, err)

	err = VerifyCertificate(cert, issuer.Pub, writer.Pub, "rooms/general/settings", time.Now())
	assert.ErrorIs(t, err, ErrCertDenied)
}

func TestCertify_ExpiredRejected(t *testing.T) {
	issuer, err := NewPair()
	require.NoError(t, err)
	writer, err := NewPair()
	require.NoError(t, err)

	cert, err := Certify(issuer, writer.Pub, "*", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	err = VerifyCertificate(cert, issuer.Pub, writer.Pub, "anything/here", time.Now())
	assert.ErrorIs(t, err, ErrCertExpired)
}

func TestCertify_WrongWriterDenied(t *testing.T) {
	issuer, err := NewPair()
	require.NoError(t, err)
	writer, err := NewPair()
	require.NoError(t, err)
	impostor, err := NewPair()
	require.NoError(t, err)

	cert, err := Certify(issuer, writer.Pub, "*", time.Time{})
	require.NoError(t, err)

	err = VerifyCertificate(cert, issuer.Pub, impostor.Pub, "anything", time.Now())
	assert.ErrorIs(t, err, ErrCertDenied)
}
