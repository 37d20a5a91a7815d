package gun

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gungo/internal/config"
	"gungo/internal/dam"
	"gungo/internal/gunerr"
	"gungo/internal/graph"
	"gungo/internal/sea"
)

func newTestGun(t *testing.T) *Gun {
	t.Helper()
	g, err := New(config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGun_PutThenOnce(t *testing.T) {
	g := newTestGun(t)

	require.NoError(t, g.Get("room1").Put(map[string]any{"topic": "welcome"}))

	v, ok, err := g.Get("room1").Get("topic").Once(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "welcome", v)
}

func TestGun_DeepChainTenLevels(t *testing.T) {
	g := newTestGun(t)

	c := g.Get("root")
	require.NoError(t, c.Put(map[string]any{}))
	for i := 0; i < 10; i++ {
		field := fmt.Sprintf("level%d", i)
		require.NoError(t, c.Get(field).Put(map[string]any{"marker": i}))
		c = c.Get(field)
	}

	v, ok, err := c.Get("marker").Once(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9, v)
}

func TestGun_InboundHashSoulTamperedContentRejected(t *testing.T) {
	g := newTestGun(t)

	n := graph.NewNode(graph.HashSoul("deadbeef"))
	n.SetField("body", "not what the hash expects", 1)

	env := &dam.Envelope{ID: "e1", Put: map[string]*graph.Node{n.Meta.Soul: n}}
	err := g.Router().HandleInbound("peer-x", env)
	assert.ErrorIs(t, err, gunerr.ErrHashMismatch)
}

func TestGun_InboundHashSoulCorrectContentAccepted(t *testing.T) {
	g := newTestGun(t)

	n := graph.NewNode("")
	n.SetField("body", "immutable content", 1)
	digest := graph.HashOf(graph.CanonicalForHash(n))
	soul := graph.HashSoul(digest)
	n.Meta.Soul = soul

	env := &dam.Envelope{ID: "e2", Put: map[string]*graph.Node{soul: n}}
	require.NoError(t, g.Router().HandleInbound("peer-x", env))

	got, ok := g.Store().Read(soul)
	require.True(t, ok)
	assert.Equal(t, "immutable content", got.Fields["body"])
}

func TestGun_UserWriteWithoutSignatureRejected(t *testing.T) {
	g := newTestGun(t)
	pair, err := sea.NewPair()
	require.NoError(t, err)
	soul := "~" + pair.Pub

	n := graph.NewNode(soul)
	n.SetField("alias", "mallory", 1)

	env := &dam.Envelope{ID: "e3", Put: map[string]*graph.Node{soul: n}}
	err = g.Router().HandleInbound("peer-x", env)
	assert.ErrorIs(t, err, gunerr.ErrSignatureInvalid)
}

func TestGun_UserWriteWithValidSignatureAccepted(t *testing.T) {
	g := newTestGun(t)
	pair, err := sea.NewPair()
	require.NoError(t, err)
	soul := "~" + pair.Pub

	require.NoError(t, g.PutSigned(soul, map[string]any{"alias": "alice"}, pair))

	v, ok, err := g.Get(soul).Get("alias").Once(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", v)
}

func TestGun_CertifiedThirdPartyWriteAccepted(t *testing.T) {
	g := newTestGun(t)
	owner, err := sea.NewPair()
	require.NoError(t, err)
	writer, err := sea.NewPair()
	require.NoError(t, err)
	soul := "~" + owner.Pub

	cert, err := sea.Certify(owner, writer.Pub, "*", time.Time{})
	require.NoError(t, err)

	require.NoError(t, g.PutCertified(soul, map[string]any{"comment": "nice post"}, writer, cert))

	v, ok, err := g.Get(soul).Get("comment").Once(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "nice post", v)
}

func TestGun_CertifiedThirdPartyWriteWrongWriterRejected(t *testing.T) {
	g := newTestGun(t)
	owner, err := sea.NewPair()
	require.NoError(t, err)
	holder, err := sea.NewPair()
	require.NoError(t, err)
	impostor, err := sea.NewPair()
	require.NoError(t, err)
	soul := "~" + owner.Pub

	cert, err := sea.Certify(owner, holder.Pub, "*", time.Time{})
	require.NoError(t, err)

	err = g.PutCertified(soul, map[string]any{"comment": "spam"}, impostor, cert)
	assert.ErrorIs(t, err, gunerr.ErrSignatureInvalid)
}

func TestGun_CertifiedThirdPartyWriteOutsidePolicyRejected(t *testing.T) {
	g := newTestGun(t)
	owner, err := sea.NewPair()
	require.NoError(t, err)
	writer, err := sea.NewPair()
	require.NoError(t, err)
	soul := "~" + owner.Pub

	cert, err := sea.Certify(owner, writer.Pub, "comments", time.Time{})
	require.NoError(t, err)

	err = g.PutCertified(soul, map[string]any{"profile": "hijacked"}, writer, cert)
	assert.ErrorIs(t, err, gunerr.ErrSignatureInvalid)
}

func TestGun_MessagePredicateFiltersInboundEnvelopes(t *testing.T) {
	config.RegisterPredicate("reject-everything-test", func(env *dam.Envelope) bool { return false })

	opts := config.Default()
	opts.MessagePredicate = "reject-everything-test"
	g, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	n := graph.NewNode("blocked")
	n.SetField("body", "should not land", 1)
	env := &dam.Envelope{ID: "pred-1", Put: map[string]*graph.Node{"blocked": n}}
	require.NoError(t, g.Router().HandleInbound("peer-x", env))

	_, ok := g.Store().Read("blocked")
	assert.False(t, ok)
}

func TestGun_CreateUserThenAuthenticate(t *testing.T) {
	g := newTestGun(t)

	u, err := g.CreateUser("bob", "s3cret")
	require.NoError(t, err)

	got, err := g.Authenticate("bob", "s3cret", u.Soul)
	require.NoError(t, err)
	assert.Equal(t, u.Pair.Pub, got.Pair.Pub)

	_, err = g.Authenticate("bob", "wrong", u.Soul)
	assert.ErrorIs(t, err, sea.ErrAuthFailed)
}

func TestGun_OnceTimesOutEmptyForMissingSoul(t *testing.T) {
	g := newTestGun(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	v, ok, err := g.Get("never-written").Once(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}
