package gun

import (
	"context"

	"gungo/internal/chain"
	"gungo/internal/graph"
	"gungo/internal/sea"
)

// chainWriter adapts a chain rooted at the store to sea.GraphWriter, so
// SEA's user-space operations can read and write the graph without
// internal/sea importing internal/chain back.
type chainWriter struct {
	g *Gun
}

func (w chainWriter) PutAt(soul string, fields map[string]any) error {
	return chain.Root(w.g.store, soul).Put(fields)
}

func (w chainWriter) OnceAt(soul string) (map[string]any, bool, error) {
	v, ok, err := chain.Root(w.g.store, soul).Once(context.Background())
	if err != nil || !ok {
		return nil, ok, err
	}
	fields, _ := v.(map[string]any)
	// chain.Put stores nested maps (such as a profile's "auth" record) as
	// linked child nodes; inline those one level deep so callers see the
	// map they wrote.
	out := make(map[string]any, len(fields))
	for k, fv := range fields {
		if e, isEdge := graph.IsEdge(fv); isEdge {
			if child, ok := w.g.store.Read(e.Soul); ok {
				out[k] = child.Fields
				continue
			}
		}
		out[k] = fv
	}
	return out, true, nil
}

var _ sea.GraphWriter = chainWriter{}

// CreateUser creates a new signed-in identity under "~pub" and stores its
// public profile in the graph.
func (g *Gun) CreateUser(alias, password string) (*sea.User, error) {
	return sea.CreateUser(chainWriter{g}, alias, password)
}

// Authenticate loads and verifies a user profile previously created with
// CreateUser, returning its keypair.
func (g *Gun) Authenticate(alias, password, soul string) (*sea.User, error) {
	return sea.Authenticate(chainWriter{g}, alias, password, soul)
}

// PutSigned writes fields to soul (a "~pub" user soul) with a signature
// over those fields attached under the reserved "~sig" field, so the
// DAM signature gate will accept the write.
func (g *Gun) PutSigned(soul string, fields map[string]any, pair *sea.Pair) error {
	signed, err := sea.Sign(fields, pair)
	if err != nil {
		return err
	}
	withSig := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		withSig[k] = v
	}
	withSig[userSigField] = signed.Signature
	return chain.Root(g.store, soul).Put(withSig)
}

// PutCertified writes fields to soul (a "~ownerPub" user soul) on behalf
// of a third party: the write is signed by writerPair rather than the
// soul's own key, and carries cert -- a certificate issued by the soul's
// owner authorizing writerPair's pubkey to write under a path matching
// every field being set -- so the DAM signature gate can admit it per
// spec §4.5's certificate-delegated write rule. The write is checked
// against the same gate before it is stored locally; a failing check is
// returned as a SignatureInvalid error and nothing is written.
func (g *Gun) PutCertified(soul string, fields map[string]any, writerPair *sea.Pair, cert *sea.Certificate) error {
	encodedCert, err := sea.EncodeCertificate(cert)
	if err != nil {
		return err
	}
	signed, err := sea.Sign(fields, writerPair)
	if err != nil {
		return err
	}
	withExtra := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		withExtra[k] = v
	}
	withExtra[userSigField] = signed.Signature
	withExtra[userCertField] = encodedCert
	withExtra[userWriterField] = writerPair.Pub

	n := graph.NewNode(soul)
	for k, v := range withExtra {
		n.SetField(k, v, 0)
	}
	if err := g.signatureGate(soul, n); err != nil {
		return err
	}
	return chain.Root(g.store, soul).Put(withExtra)
}
