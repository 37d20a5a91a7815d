// Package gun is gungo's public embedding API: it wires the graph store,
// HAM merge engine (via the store), DAM router, SEA security layer, and
// transport links into one handle applications construct once and then
// navigate with chains, mirroring gun.rs's Gun::new()/chain style (see
// examples/basic.rs and examples/relay.rs in the retrieved reference
// corpus this engine was modeled on).
package gun

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gungo/internal/chain"
	"gungo/internal/config"
	"gungo/internal/dam"
	"gungo/internal/gunerr"
	"gungo/internal/graph"
	"gungo/internal/sea"
	"gungo/internal/transport"
)

// Gun is the root handle: construct one with New, navigate from it with
// Get, and Close it on shutdown.
type Gun struct {
	opts   *config.Options
	store  *graph.Store
	router *dam.Router
	log    *logrus.Entry

	stopDial chan struct{}
}

// New builds a Gun from opts: picks a storage backend (bbolt when Radisk
// is set and a StoragePath is given, otherwise in-memory), wires the DAM
// router's signature gate and put callback to the store, and dials any
// configured peers in the background.
func New(opts *config.Options) (*Gun, error) {
	if opts == nil {
		opts = config.Default()
	}
	log := logrus.NewEntry(logrus.StandardLogger())

	backend, err := newBackend(opts)
	if err != nil {
		return nil, err
	}

	g := &Gun{opts: opts, log: log, stopDial: make(chan struct{})}

	routerOpts := []dam.Option{
		dam.WithSignatureGate(g.signatureGate),
		dam.WithOnPut(func(soul string, node *graph.Node) {
			if _, err := g.store.Write(node); err != nil {
				g.log.WithError(err).WithField("soul", soul).Warn("gun: failed to merge inbound put")
			}
		}),
		dam.WithLogger(log),
	}
	if opts.MessagePredicate != "" {
		if fn, ok := config.LookupPredicate(opts.MessagePredicate); ok {
			routerOpts = append(routerOpts, dam.WithPredicate(fn))
		} else {
			log.WithField("name", opts.MessagePredicate).Warn("gun: no predicate registered under this name")
		}
	}
	g.router = dam.New(routerOpts...)

	g.store = graph.New(
		backend,
		graph.WithLogger(log),
		graph.WithPeerLoader(g.loadFromPeers),
	)

	for _, url := range opts.Peers {
		go transport.DialWithReconnect(
			url, uuid.NewString(),
			func(p *transport.WSPeer) { g.router.AddPeer(p) },
			func(peerID string) { g.router.RemovePeer(peerID) },
			func(peerID string, env *dam.Envelope) {
				if err := g.router.HandleInbound(peerID, env); err != nil {
					g.log.WithError(err).Warn("gun: inbound envelope rejected")
				}
			},
			g.stopDial,
			log,
		)
	}

	return g, nil
}

func newBackend(opts *config.Options) (graph.Collaborator, error) {
	if opts.Radisk && opts.StoragePath != "" {
		b, err := graph.NewBoltBackend(opts.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("gun: open storage: %w", err)
		}
		return b, nil
	}
	return graph.NewMemoryBackend(), nil
}

// Get returns a chain rooted at soul.
func (g *Gun) Get(soul string) *chain.Chain {
	return chain.Root(g.store, soul)
}

// Router exposes the DAM router for transport wiring and tests; the
// inbound accept handler in server.go uses the router directly.
func (g *Gun) Router() *dam.Router { return g.router }

// Store exposes the graph store, e.g. for cmd/gund's stats logging and
// tests.
func (g *Gun) Store() *graph.Store { return g.store }

// loadFromPeers issues a DAM get for soul and waits up to 5s for a reply,
// satisfying graph.Store's peer-fallback hook.
func (g *Gun) loadFromPeers(ctx context.Context, soul string) (*graph.Node, bool) {
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	return g.router.RequestGet(uuid.NewString(), soul, timeout)
}

// signatureGate rejects hash-soul writes whose content doesn't match
// their digest and user-soul writes that verifyUserWrite does not
// authorize (neither signed by the soul's own public key nor carried by a
// valid certificate), per spec §7's "reject unverifiable hash/user-soul
// writes pre-merge" rule.
func (g *Gun) signatureGate(soul string, node *graph.Node) error {
	parsed, err := graph.ParseSoul(soul)
	if err != nil {
		return err
	}

	switch parsed.Kind {
	case graph.KindHash:
		if !graph.VerifyHashSoul(node) {
			return gunerr.New(gunerr.HashMismatch, soul, "content does not match hash soul", nil)
		}
	case graph.KindUser:
		return verifyUserWrite(node, parsed.Ident)
	}
	return nil
}

// verifyUserWrite checks a "~ownerPub" node's write is authorized: either
// self-signed by ownerPub directly, or signed by a third party's key
// together with a certificate (per spec §4.5) issued by ownerPub that
// covers every field the write touches.
func verifyUserWrite(node *graph.Node, ownerPub string) error {
	sigField, ok := node.Fields[userSigField]
	if !ok {
		return gunerr.New(gunerr.SignatureInvalid, node.Meta.Soul, "user-space write missing signature", nil)
	}
	sigStr, ok := sigField.(string)
	if !ok {
		return gunerr.New(gunerr.SignatureInvalid, node.Meta.Soul, "malformed signature field", nil)
	}

	signerPub := ownerPub
	var cert *sea.Certificate
	if certField, hasCert := node.Fields[userCertField]; hasCert {
		certStr, ok := certField.(string)
		if !ok {
			return gunerr.New(gunerr.SignatureInvalid, node.Meta.Soul, "malformed certificate field", nil)
		}
		writerField, ok := node.Fields[userWriterField]
		if !ok {
			return gunerr.New(gunerr.SignatureInvalid, node.Meta.Soul, "certified write missing writer pubkey", nil)
		}
		writerPub, ok := writerField.(string)
		if !ok {
			return gunerr.New(gunerr.SignatureInvalid, node.Meta.Soul, "malformed writer field", nil)
		}
		c, err := sea.DecodeCertificate(certStr)
		if err != nil {
			return gunerr.New(gunerr.SignatureInvalid, node.Meta.Soul, "malformed certificate", err)
		}
		cert = c
		signerPub = writerPub
	}

	reserved := map[string]bool{userSigField: true, userCertField: true, userWriterField: true}
	rest := make(map[string]any, len(node.Fields))
	for f, v := range node.Fields {
		if !reserved[f] {
			rest[f] = v
		}
	}

	signed := &sea.Signed{Value: rest, Signature: sigStr}
	if _, err := sea.Verify(signed, signerPub); err != nil {
		return gunerr.New(gunerr.SignatureInvalid, node.Meta.Soul, "signature verification failed", err)
	}

	if cert != nil {
		for field := range rest {
			if err := sea.VerifyCertificate(cert, ownerPub, signerPub, field, time.Now()); err != nil {
				return gunerr.New(gunerr.SignatureInvalid, node.Meta.Soul, "certificate does not authorize this write", err)
			}
		}
	}
	return nil
}

// Reserved field names a user-space node's signature, and (for
// certificate-delegated third-party writes) its accompanying certificate
// and writer pubkey, are stored under.
const (
	userSigField    = "~sig"
	userCertField   = "~cert"
	userWriterField = "~writer"
)

// Close stops outbound peer dials and closes the storage backend.
func (g *Gun) Close() error {
	close(g.stopDial)
	return g.store.Close()
}
