// Package store defines the contract of the live entity store: named
// collections of schemaless documents with subscriptions, atomic batches,
// server-assigned timestamps and field-level increments. The store itself
// is an external collaborator; backends live under storage/entitystore.
package store

import (
	"context"

	"github.com/pkg/errors"
)

// Collection names in use.
const (
	Students     = "students"
	Courses      = "courses"
	Enquiries    = "enquiries"
	Transactions = "transactions"
	Sales        = "sales"
	Materials    = "materials"
	Inventory    = "inventory"
	Counters     = "counters"
)

var ErrNotFound = errors.New("document not found")

// IsNotFound reports whether err (or its cause) is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

type (
	// Doc is a schemaless document. Field values are restricted to
	// JSON-representable types plus the Increment/ServerTimestamp
	// placeholders on writes.
	Doc map[string]interface{}

	// Snapshot is the materialized state of a collection, delivered to
	// every subscriber on each underlying change. Docs carry their id
	// under the "id" key.
	Snapshot []Doc

	// SubscriberFunc receives collection snapshots. It must not block;
	// consumers tolerate transient staleness between collections since
	// subscriptions are independent streams with no read-your-writes
	// guarantee across them.
	SubscriberFunc func(Snapshot)

	// UnsubscribeFunc releases a listener registered with Subscribe.
	UnsubscribeFunc func()

	Collection interface {
		// Insert creates a document and returns its generated id.
		Insert(ctx context.Context, doc Doc) (string, error)
		// Update merges fields into an existing document.
		Update(ctx context.Context, id string, fields Doc) error
		Delete(ctx context.Context, id string) error
		Get(ctx context.Context, id string) (Doc, error)
		All(ctx context.Context) ([]Doc, error)
		// Subscribe registers fn and immediately delivers the current
		// snapshot, then again on every change until unsubscribed.
		Subscribe(fn SubscriberFunc) UnsubscribeFunc
		// IncrementAndGet atomically adds delta to a numeric field of the
		// document (creating the document and field as needed) and
		// returns the resulting value. This is the serialized sequence
		// allocation primitive; plain Update(Increment(n)) is blind.
		IncrementAndGet(ctx context.Context, id, field string, delta int64) (int64, error)
	}

	// Batch accumulates mixed writes applied all-or-nothing on Commit.
	// Insert returns the document id assigned ahead of the commit so
	// shared-key documents can be linked before anything is written.
	Batch interface {
		Insert(collection string, doc Doc) (id string)
		InsertWithID(collection, id string, doc Doc)
		Update(collection, id string, fields Doc)
		Delete(collection, id string)
		Commit(ctx context.Context) error
	}

	Store interface {
		Collection(name string) Collection
		Batch() Batch
		Close() error
	}
)

// field value placeholders, resolved by the backend at write time

type incrementValue struct{ Delta float64 }

type serverTimestamp struct{}

// Increment returns a placeholder that atomically adds delta to the
// current numeric value of the field (missing fields start at zero).
func Increment(delta float64) interface{} { return incrementValue{Delta: delta} }

// ServerTimestamp returns a placeholder resolved to the store's wall
// clock at commit time.
func ServerTimestamp() interface{} { return serverTimestamp{} }

// IncrementDelta reports whether v is an Increment placeholder.
func IncrementDelta(v interface{}) (float64, bool) {
	inc, ok := v.(incrementValue)
	return inc.Delta, ok
}

// IsServerTimestamp reports whether v is a ServerTimestamp placeholder.
func IsServerTimestamp(v interface{}) bool {
	_, ok := v.(serverTimestamp)
	return ok
}
