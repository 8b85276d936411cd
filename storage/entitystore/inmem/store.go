// Package inmemstore is the in-memory entity store backend. It backs
// the test suites and local development: real subscriptions, real
// all-or-nothing batches, no external process.
package inmemstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/acadhub/backend/core/store"
)

type DB struct {
	mu          sync.RWMutex
	collections map[string]map[string]store.Doc
	subscribers map[string]map[int]store.SubscriberFunc
	nextSubID   int
}

var _ store.Store = (*DB)(nil)

func Open() *DB {
	return &DB{
		collections: make(map[string]map[string]store.Doc),
		subscribers: make(map[string]map[int]store.SubscriberFunc),
	}
}

func (db *DB) Collection(name string) store.Collection {
	return &collection{db: db, name: name}
}

func (db *DB) Batch() store.Batch {
	return &batch{db: db}
}

func (db *DB) Close() error { return nil }

// table returns the named collection's table, creating it lazily.
// callers must hold db.mu.
func (db *DB) table(name string) map[string]store.Doc {
	tbl, ok := db.collections[name]
	if !ok {
		tbl = make(map[string]store.Doc)
		db.collections[name] = tbl
	}
	return tbl
}

// snapshotLocked materializes the collection state. callers must hold db.mu.
func (db *DB) snapshotLocked(name string) store.Snapshot {
	tbl := db.collections[name]
	snap := make(store.Snapshot, 0, len(tbl))
	for id, doc := range tbl {
		cp := doc.Clone()
		cp["id"] = id
		snap = append(snap, cp)
	}
	return snap
}

// notify delivers fresh snapshots to every subscriber of the given
// collections. Snapshots are built under the read lock; delivery
// happens outside it so a subscriber may call back into the store.
func (db *DB) notify(names ...string) {
	type delivery struct {
		fn   store.SubscriberFunc
		snap store.Snapshot
	}
	var deliveries []delivery

	db.mu.RLock()
	for _, name := range names {
		subs := db.subscribers[name]
		if len(subs) == 0 {
			continue
		}
		snap := db.snapshotLocked(name)
		for _, fn := range subs {
			deliveries = append(deliveries, delivery{fn, snap})
		}
	}
	db.mu.RUnlock()

	for _, d := range deliveries {
		d.fn(d.snap)
	}
}

// resolve materializes field placeholders against the current value of
// the field. callers must hold db.mu for writing.
func resolve(current store.Doc, fields store.Doc) store.Doc {
	resolved := make(store.Doc, len(fields))
	for k, v := range fields {
		if store.IsServerTimestamp(v) {
			resolved[k] = time.Now().UTC()
			continue
		}
		if delta, ok := store.IncrementDelta(v); ok {
			var base float64
			if current != nil {
				base = current.Float(k)
			}
			resolved[k] = base + delta
			continue
		}
		resolved[k] = v
	}
	return resolved
}

type collection struct {
	db   *DB
	name string
}

var _ store.Collection = (*collection)(nil)

func (c *collection) Insert(_ context.Context, doc store.Doc) (string, error) {
	id := uuid.New().String()

	c.db.mu.Lock()
	c.db.table(c.name)[id] = resolve(nil, doc.Clone())
	c.db.mu.Unlock()

	c.db.notify(c.name)
	return id, nil
}

func (c *collection) Update(_ context.Context, id string, fields store.Doc) error {
	c.db.mu.Lock()
	tbl := c.db.table(c.name)
	current, ok := tbl[id]
	if !ok {
		c.db.mu.Unlock()
		return errors.Wrapf(store.ErrNotFound, "%s/%s", c.name, id)
	}
	for k, v := range resolve(current, fields) {
		current[k] = v
	}
	c.db.mu.Unlock()

	c.db.notify(c.name)
	return nil
}

func (c *collection) Delete(_ context.Context, id string) error {
	c.db.mu.Lock()
	tbl := c.db.table(c.name)
	if _, ok := tbl[id]; !ok {
		c.db.mu.Unlock()
		return errors.Wrapf(store.ErrNotFound, "%s/%s", c.name, id)
	}
	delete(tbl, id)
	c.db.mu.Unlock()

	c.db.notify(c.name)
	return nil
}

func (c *collection) Get(_ context.Context, id string) (store.Doc, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	doc, ok := c.db.collections[c.name][id]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "%s/%s", c.name, id)
	}
	cp := doc.Clone()
	cp["id"] = id
	return cp, nil
}

func (c *collection) All(_ context.Context) ([]store.Doc, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	return c.db.snapshotLocked(c.name), nil
}

func (c *collection) Subscribe(fn store.SubscriberFunc) store.UnsubscribeFunc {
	c.db.mu.Lock()
	subs, ok := c.db.subscribers[c.name]
	if !ok {
		subs = make(map[int]store.SubscriberFunc)
		c.db.subscribers[c.name] = subs
	}
	c.db.nextSubID++
	subID := c.db.nextSubID
	subs[subID] = fn
	snap := c.db.snapshotLocked(c.name)
	c.db.mu.Unlock()

	// initial snapshot, delivered outside the lock
	fn(snap)

	return func() {
		c.db.mu.Lock()
		delete(c.db.subscribers[c.name], subID)
		c.db.mu.Unlock()
	}
}

func (c *collection) IncrementAndGet(_ context.Context, id, field string, delta int64) (int64, error) {
	c.db.mu.Lock()
	tbl := c.db.table(c.name)
	doc, ok := tbl[id]
	if !ok {
		doc = store.Doc{}
		tbl[id] = doc
	}
	val := int64(doc.Float(field)) + delta
	doc[field] = val
	c.db.mu.Unlock()

	c.db.notify(c.name)
	return val, nil
}

type batchOp struct {
	kind       string // insert | update | delete
	collection string
	id         string
	fields     store.Doc
}

type batch struct {
	db  *DB
	ops []batchOp
}

var _ store.Batch = (*batch)(nil)

func (b *batch) Insert(collection string, doc store.Doc) string {
	id := uuid.New().String()
	b.InsertWithID(collection, id, doc)
	return id
}

func (b *batch) InsertWithID(collection, id string, doc store.Doc) {
	b.ops = append(b.ops, batchOp{kind: "insert", collection: collection, id: id, fields: doc.Clone()})
}

func (b *batch) Update(collection, id string, fields store.Doc) {
	b.ops = append(b.ops, batchOp{kind: "update", collection: collection, id: id, fields: fields.Clone()})
}

func (b *batch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{kind: "delete", collection: collection, id: id})
}

// Commit applies the accumulated writes all-or-nothing: every op is
// checked against the current state before anything is mutated.
func (b *batch) Commit(_ context.Context) error {
	b.db.mu.Lock()

	// validation pass; inserts earlier in the batch satisfy updates
	// later in it, matching what a transactional backend would see
	inserted := make(map[string]bool, len(b.ops))
	for _, op := range b.ops {
		key := op.collection + "/" + op.id
		switch op.kind {
		case "insert":
			inserted[key] = true
		case "update", "delete":
			if _, ok := b.db.table(op.collection)[op.id]; !ok && !inserted[key] {
				b.db.mu.Unlock()
				return errors.Wrap(store.ErrNotFound, key)
			}
		}
	}

	// apply pass
	touched := make(map[string]bool, len(b.ops))
	for _, op := range b.ops {
		tbl := b.db.table(op.collection)
		switch op.kind {
		case "insert":
			tbl[op.id] = resolve(nil, op.fields)
		case "update":
			current := tbl[op.id]
			for k, v := range resolve(current, op.fields) {
				current[k] = v
			}
		case "delete":
			delete(tbl, op.id)
		}
		touched[op.collection] = true
	}
	b.db.mu.Unlock()

	names := make([]string, 0, len(touched))
	for name := range touched {
		names = append(names, name)
	}
	b.db.notify(names...)
	return nil
}
