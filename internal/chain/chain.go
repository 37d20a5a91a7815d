// Package chain implements the lazy chain interpreter: the
// get/put/once/on/off/map/set/back navigation API that sits on top of
// internal/graph.Store, per spec §4.3.
package chain

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"gungo/internal/graph"
	"gungo/internal/gunerr"
)

// step is one hop in a chain's ancestry: the soul of the parent node and
// the field that was navigated through to reach the next hop. Chains
// keep their ancestry as a plain value slice, never as pointers to
// children, so there is no reference cycle to manage.
type step struct {
	soul  string
	field string
}

// Chain is a lazy pointer into the graph: it may reference an already
// materialized node (soul != "") or a dangling edge that only becomes
// real the first time Put is called on it.
type Chain struct {
	store *graph.Store
	path  []step // ancestry, root first
	soul  string // resolved soul, or "" if this chain is a pending edge
	field string // field name this chain was reached through, if any
}

// Root returns a chain bound directly to soul, creating no ancestry.
// This is the entry point equivalent to gun.get(soul).
func Root(store *graph.Store, soul string) *Chain {
	return &Chain{store: store, soul: soul}
}

// Get navigates to field on the current chain. If field holds an edge,
// the returned chain is already resolved; otherwise it is a dangling
// chain that only exists once something is Put to it.
func (c *Chain) Get(field string) *Chain {
	child := &Chain{
		store: c.store,
		path:  append(append([]step{}, c.path...), step{soul: c.soul, field: field}),
		field: field,
	}

	if c.soul == "" {
		return child
	}
	node, ok := c.store.Read(c.soul)
	if !ok {
		return child
	}
	v, ok := node.Fields[field]
	if !ok {
		return child
	}
	if edge, ok := v.(graph.Edge); ok {
		child.soul = edge.Soul
	}
	return child
}

// Back walks up n ancestors. Back(0) returns the chain itself; walking
// past the root clamps at the root rather than erroring.
func (c *Chain) Back(n int) *Chain {
	if n <= 0 || len(c.path) == 0 {
		return c
	}
	idx := len(c.path) - n
	if idx < 0 {
		idx = 0
	}
	parentStep := c.path[idx]
	return &Chain{
		store: c.store,
		path:  append([]step{}, c.path[:idx]...),
		soul:  parentStep.soul,
		field: parentStep.field,
	}
}

// Put writes value at this chain's position. A map value replaces the
// fields of the chain's own node, materializing a fresh soul first if
// this chain was a dangling edge. A scalar value sets the single field
// this chain was reached through on its parent node; nested maps within
// a map value are flattened into their own linked child nodes, per the
// graph's flat-node data model.
func (c *Chain) Put(value any) error {
	now := nowState()

	if m, ok := value.(map[string]any); ok {
		soul := c.soul
		if soul == "" {
			soul = newSoul()
		} else if c.isExpired(soul) {
			return gunerr.New(gunerr.Expired, soul, "put to an expired soul", nil)
		}
		if err := c.putFields(soul, m, now); err != nil {
			return err
		}
		if c.hasParent() {
			if err := c.linkParent(soul, now); err != nil {
				return err
			}
		}
		c.soul = soul
		return nil
	}

	if !c.hasParent() {
		return fmt.Errorf("chain: cannot put a scalar at the root of a chain")
	}
	parentSoul := c.path[len(c.path)-1].soul
	if c.isExpired(parentSoul) {
		return gunerr.New(gunerr.Expired, parentSoul, "put to an expired soul", nil)
	}
	return c.writeField(parentSoul, c.field, value, now)
}

// isExpired reports whether soul carries a "<?N" expiration suffix whose
// deadline, measured from the node's earliest recorded state, has
// already passed. A soul that doesn't exist yet is never expired -- it
// can't be past its own creation.
func (c *Chain) isExpired(soul string) bool {
	parsed, err := graph.ParseSoul(soul)
	if err != nil || !parsed.HasExpiry {
		return false
	}
	node, ok := c.store.Read(soul)
	if !ok {
		return false
	}
	created, ok := node.EarliestState()
	if !ok {
		return false
	}
	return nowState() >= created+float64(parsed.ExpireSecs)*1000
}

// putFields flattens m onto soul, recursing into nested maps as linked
// child nodes.
func (c *Chain) putFields(soul string, m map[string]any, state float64) error {
	for field, v := range m {
		if nested, ok := v.(map[string]any); ok {
			childSoul := newSoul()
			if err := c.putFields(childSoul, nested, state); err != nil {
				return err
			}
			if err := c.writeField(soul, field, graph.Edge{Soul: childSoul}, state); err != nil {
				return err
			}
			continue
		}
		if err := c.writeField(soul, field, v, state); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) linkParent(soul string, state float64) error {
	parentSoul := c.path[len(c.path)-1].soul
	return c.writeField(parentSoul, c.field, graph.Edge{Soul: soul}, state)
}

func (c *Chain) writeField(soul, field string, value any, state float64) error {
	n := graph.NewNode(soul)
	n.SetField(field, value, state)
	_, err := c.store.Write(n)
	return err
}

func (c *Chain) hasParent() bool {
	return len(c.path) > 0
}

// subscribeTarget returns the (soul, field) pair that reads/Once/On
// should actually operate against: the chain's own soul with no field
// narrowing when it resolved to a node (an edge target), or its
// parent's soul narrowed to the field it was reached through when it is
// a scalar leaf or a still-dangling edge.
func (c *Chain) subscribeTarget() (soul string, field string, ok bool) {
	if c.soul != "" {
		return c.soul, "", true
	}
	if !c.hasParent() {
		return "", "", false
	}
	return c.path[len(c.path)-1].soul, c.field, true
}

// Once resolves the chain's current value, falling back to the store's
// async peer loader when the local graph has nothing for this soul yet.
// It returns false (not an error) when the timeout in ctx elapses with
// nothing found, matching the spec's "bounded wait resolves empty" rule.
func (c *Chain) Once(ctx context.Context) (any, bool, error) {
	soul, field, ok := c.subscribeTarget()
	if !ok {
		return nil, false, nil
	}
	if c.isExpired(soul) {
		return nil, false, nil
	}

	if field != "" {
		node, ok := c.store.LoadAsync(ctx, soul)
		if !ok {
			return nil, false, nil
		}
		v, ok := node.Fields[field]
		return v, ok, nil
	}

	done := make(chan struct{})
	var node *graph.Node
	var found bool
	go func() {
		node, found = c.store.LoadAsync(ctx, soul)
		close(done)
	}()

	select {
	case <-done:
		if !found {
			return nil, false, nil
		}
		return node.Fields, true, nil
	case <-ctx.Done():
		return nil, false, nil
	}
}

// On subscribes cb to fire whenever the field this chain points to (or
// every field of the chain's node, if this chain has no field) changes.
// It fires once immediately with the current value if one exists.
func (c *Chain) On(cb func(value any, field string)) Handle {
	soul, field, ok := c.subscribeTarget()
	if !ok {
		return Handle{}
	}
	if c.isExpired(soul) {
		return Handle{}
	}

	if node, ok := c.store.Read(soul); ok {
		if field != "" {
			if v, ok := node.Fields[field]; ok {
				cb(v, field)
			}
		} else {
			for f, v := range node.Fields {
				cb(v, f)
			}
		}
	}

	h := c.store.Subscribe(soul, field, func(ev graph.ChangeEvent) {
		for f, v := range ev.Fields {
			cb(v, f)
		}
	})
	return Handle{soul: soul, h: h, valid: true}
}

// Off cancels a subscription created by On.
func (c *Chain) Off(h Handle) {
	if !h.valid {
		return
	}
	c.store.Unsubscribe(h.h)
}

// Handle identifies a live On subscription for a later Off call.
type Handle struct {
	soul  string
	h     graph.Handle
	valid bool
}

// Map returns a child chain for every field on the current node, scalar
// or edge alike -- set members (edge-valued fields) resolve straight to
// their target node, while plain fields stay leaf chains whose Once/On
// read back the scalar value, per spec §4.3's "fan out across every
// field" rule.
func (c *Chain) Map() []*Chain {
	if c.soul == "" {
		return nil
	}
	if c.isExpired(c.soul) {
		return nil
	}
	node, ok := c.store.Read(c.soul)
	if !ok {
		return nil
	}
	out := make([]*Chain, 0, len(node.Fields))
	for field := range node.Fields {
		out = append(out, c.Get(field))
	}
	return out
}

// Set adds value as a member of the set rooted at this chain, keyed by
// a fresh random field name so concurrent adders never collide.
func (c *Chain) Set(value any) (*Chain, error) {
	if c.soul == "" {
		soul := newSoul()
		if c.hasParent() {
			if err := c.linkParent(soul, nowState()); err != nil {
				return nil, err
			}
		}
		c.soul = soul
	}
	member := c.Get(randomFieldName())
	if err := member.Put(value); err != nil {
		return nil, err
	}
	return member, nil
}

func nowState() float64 {
	return float64(time.Now().UnixMilli())
}

// newSoul mints a fresh plain-family soul for a node the chain creates
// implicitly (a nested map, a set member). It is not a content hash --
// hash-family souls are reserved for content explicitly addressed that
// way, per spec §3 -- so no "#" prefix is applied here.
func newSoul() string {
	return randomFieldName()
}

func randomFieldName() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
