// Package pgstore persists entity documents in a single jsonb table.
// Every collection write goes through the documents table so batch
// commits map directly onto SQL transactions. Subscriptions are
// in-process: the hub re-reads and fans out a collection snapshot
// after each successful write.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/acadhub/backend/core/store"
)

type Store struct {
	db *sqlx.DB

	mu          sync.Mutex
	subscribers map[string]map[int]store.SubscriberFunc
	nextSubID   int
}

var _ store.Store = (*Store)(nil)

func New(db *sqlx.DB) *Store {
	return &Store{
		db:          db,
		subscribers: make(map[string]map[int]store.SubscriberFunc),
	}
}

func (s *Store) Collection(name string) store.Collection {
	return &collection{st: s, name: name}
}

func (s *Store) Batch() store.Batch {
	return &batch{st: s}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) notify(names ...string) {
	type delivery struct {
		fn   store.SubscriberFunc
		snap store.Snapshot
	}
	var deliveries []delivery

	s.mu.Lock()
	for _, name := range names {
		subs := s.subscribers[name]
		if len(subs) == 0 {
			continue
		}
		snap, err := s.snapshot(context.Background(), name)
		if err != nil {
			continue
		}
		for _, fn := range subs {
			deliveries = append(deliveries, delivery{fn, snap})
		}
	}
	s.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.snap)
	}
}

func (s *Store) snapshot(ctx context.Context, name string) (store.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM documents WHERE collection = $1`, name)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", name)
	}
	defer func() { _ = rows.Close() }()

	var snap store.Snapshot
	for rows.Next() {
		var id string
		var raw []byte
		if err = rows.Scan(&id, &raw); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", name)
		}
		doc, err := unmarshalDoc(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s/%s", name, id)
		}
		doc["id"] = id
		snap = append(snap, doc)
	}
	return snap, rows.Err()
}

func unmarshalDoc(raw []byte) (store.Doc, error) {
	doc := store.Doc{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// resolve materializes placeholders against the existing document.
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

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func insertDoc(ctx context.Context, ex execer, name, id string, doc store.Doc) error {
	raw, err := json.Marshal(resolve(nil, doc))
	if err != nil {
		return errors.Wrapf(err, "encoding %s/%s", name, id)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`, name, id, raw)
	return errors.Wrapf(err, "inserting %s/%s", name, id)
}

// updateDoc merges fields into an existing document. The read locks
// the row so concurrent increments do not lose updates.
func updateDoc(ctx context.Context, ex execer, name, id string, fields store.Doc) error {
	var raw []byte
	err := ex.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`, name, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return errors.Wrapf(store.ErrNotFound, "%s/%s", name, id)
	}
	if err != nil {
		return errors.Wrapf(err, "reading %s/%s", name, id)
	}

	current, err := unmarshalDoc(raw)
	if err != nil {
		return errors.Wrapf(err, "decoding %s/%s", name, id)
	}
	for k, v := range resolve(current, fields) {
		current[k] = v
	}
	raw, err = json.Marshal(current)
	if err != nil {
		return errors.Wrapf(err, "encoding %s/%s", name, id)
	}
	_, err = ex.ExecContext(ctx,
		`UPDATE documents SET doc = $3, updated_at = now() WHERE collection = $1 AND id = $2`, name, id, raw)
	return errors.Wrapf(err, "updating %s/%s", name, id)
}

func deleteDoc(ctx context.Context, ex execer, name, id string) error {
	res, err := ex.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, name, id)
	if err != nil {
		return errors.Wrapf(err, "deleting %s/%s", name, id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(store.ErrNotFound, "%s/%s", name, id)
	}
	return nil
}

type collection struct {
	st   *Store
	name string
}

var _ store.Collection = (*collection)(nil)

func (c *collection) Insert(ctx context.Context, doc store.Doc) (string, error) {
	id := uuid.New().String()
	if err := insertDoc(ctx, c.st.db, c.name, id, doc); err != nil {
		return "", err
	}
	c.st.notify(c.name)
	return id, nil
}

func (c *collection) Update(ctx context.Context, id string, fields store.Doc) error {
	tx, err := c.st.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	if err = updateDoc(ctx, tx, c.name, id, fields); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	c.st.notify(c.name)
	return nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	if err := deleteDoc(ctx, c.st.db, c.name, id); err != nil {
		return err
	}
	c.st.notify(c.name)
	return nil
}

func (c *collection) Get(ctx context.Context, id string) (store.Doc, error) {
	var raw []byte
	err := c.st.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`, c.name, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(store.ErrNotFound, "%s/%s", c.name, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s/%s", c.name, id)
	}
	doc, err := unmarshalDoc(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s/%s", c.name, id)
	}
	doc["id"] = id
	return doc, nil
}

func (c *collection) All(ctx context.Context) ([]store.Doc, error) {
	return c.st.snapshot(ctx, c.name)
}

func (c *collection) Subscribe(fn store.SubscriberFunc) store.UnsubscribeFunc {
	c.st.mu.Lock()
	subs, ok := c.st.subscribers[c.name]
	if !ok {
		subs = make(map[int]store.SubscriberFunc)
		c.st.subscribers[c.name] = subs
	}
	c.st.nextSubID++
	subID := c.st.nextSubID
	subs[subID] = fn
	c.st.mu.Unlock()

	// initial snapshot
	if snap, err := c.st.snapshot(context.Background(), c.name); err == nil {
		fn(snap)
	}

	return func() {
		c.st.mu.Lock()
		delete(c.st.subscribers[c.name], subID)
		c.st.mu.Unlock()
	}
}

// IncrementAndGet bumps a numeric field in a single upsert so two
// concurrent callers can never read the same value.
func (c *collection) IncrementAndGet(ctx context.Context, id, field string, delta int64) (int64, error) {
	var val int64
	err := c.st.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, doc)
		VALUES ($1, $2, jsonb_build_object($3::text, $4::bigint))
		ON CONFLICT (collection, id) DO UPDATE
		SET doc = jsonb_set(documents.doc, ARRAY[$3::text],
		          to_jsonb(COALESCE((documents.doc->>$3)::bigint, 0) + $4)),
		    updated_at = now()
		RETURNING (doc->>$3)::bigint`,
		c.name, id, field, delta).Scan(&val)
	if err != nil {
		return 0, errors.Wrapf(err, "incrementing %s/%s.%s", c.name, id, field)
	}
	c.st.notify(c.name)
	return val, nil
}

type batchOp struct {
	kind       string // insert | update | delete
	collection string
	id         string
	fields     store.Doc
}

type batch struct {
	st  *Store
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

// Commit runs the accumulated writes in one SQL transaction.
func (b *batch) Commit(ctx context.Context) error {
	tx, err := b.st.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}

	for _, op := range b.ops {
		switch op.kind {
		case "insert":
			err = insertDoc(ctx, tx, op.collection, op.id, op.fields)
		case "update":
			err = updateDoc(ctx, tx, op.collection, op.id, op.fields)
		case "delete":
			err = deleteDoc(ctx, tx, op.collection, op.id)
		}
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	touched := make(map[string]bool, len(b.ops))
	names := make([]string, 0, len(b.ops))
	for _, op := range b.ops {
		if !touched[op.collection] {
			touched[op.collection] = true
			names = append(names, op.collection)
		}
	}
	b.st.notify(names...)
	return nil
}
