package inmemstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/acadhub/backend/core/store"
)

func TestCollectionCRUD(t *testing.T) {
	db := Open()
	defer db.Close()
	ctx := context.Background()
	col := db.Collection(store.Courses)

	id, err := col.Insert(ctx, store.Doc{"name": "Judiciary", "fee": 50000.0})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	doc, err := col.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	assert.Equal(t, id, doc.ID())
	assert.Equal(t, "Judiciary", doc.String("name"))
	assert.Equal(t, 50000.0, doc.Float("fee"))

	if err = col.Update(ctx, id, store.Doc{"fee": 55000.0}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	doc, _ = col.Get(ctx, id)
	assert.Equal(t, 55000.0, doc.Float("fee"))
	assert.Equal(t, "Judiciary", doc.String("name")) // untouched fields survive

	docs, err := col.All(ctx)
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	assert.Len(t, docs, 1)

	if err = col.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	_, err = col.Get(ctx, id)
	assert.True(t, store.IsNotFound(err))
}

func TestCollectionUpdateMissing(t *testing.T) {
	db := Open()
	defer db.Close()
	ctx := context.Background()
	col := db.Collection(store.Students)

	err := col.Update(ctx, "nope", store.Doc{"fullName": "x"})
	assert.True(t, store.IsNotFound(err))
	err = col.Delete(ctx, "nope")
	assert.True(t, store.IsNotFound(err))
}

func TestPlaceholders(t *testing.T) {
	db := Open()
	defer db.Close()
	ctx := context.Background()
	col := db.Collection(store.Inventory)

	before := time.Now().UTC()
	id, err := col.Insert(ctx, store.Doc{
		"availableStock": 3,
		"updated":        store.ServerTimestamp(),
	})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	doc, _ := col.Get(ctx, id)
	stamp := doc.Time("updated")
	assert.False(t, stamp.Before(before))

	if err = col.Update(ctx, id, store.Doc{"availableStock": store.Increment(2)}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	doc, _ = col.Get(ctx, id)
	assert.Equal(t, 5, doc.Int("availableStock"))
}

func TestIncrementAndGet(t *testing.T) {
	db := Open()
	defer db.Close()
	ctx := context.Background()
	col := db.Collection(store.Counters)

	// counter documents spring into existence on first use
	seq, err := col.IncrementAndGet(ctx, "crs1:2024", "seq", 1)
	if err != nil {
		t.Fatalf("IncrementAndGet() failed: %v", err)
	}
	assert.Equal(t, int64(1), seq)

	seq, _ = col.IncrementAndGet(ctx, "crs1:2024", "seq", 1)
	assert.Equal(t, int64(2), seq)

	// independent counters do not interfere
	seq, _ = col.IncrementAndGet(ctx, "crs2:2024", "seq", 1)
	assert.Equal(t, int64(1), seq)
}

func TestIncrementAndGetConcurrent(t *testing.T) {
	db := Open()
	defer db.Close()
	ctx := context.Background()
	col := db.Collection(store.Counters)

	const n = 50
	seen := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() {
			seq, err := col.IncrementAndGet(ctx, "crs:2024", "seq", 1)
			if err != nil {
				t.Errorf("IncrementAndGet() failed: %v", err)
			}
			seen <- seq
		}()
	}

	got := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		seq := <-seen
		if got[seq] {
			t.Fatalf("sequence %d allocated twice", seq)
		}
		got[seq] = true
	}
	assert.Len(t, got, n)
}

func TestBatchCommit(t *testing.T) {
	db := Open()
	defer db.Close()
	ctx := context.Background()

	b := db.Batch()
	matID := b.Insert(store.Materials, store.Doc{"name": "Notes A", "price": 150.0})
	b.InsertWithID(store.Inventory, matID, store.Doc{"title": "Notes A", "totalStock": 10, "availableStock": 10})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	mat, err := db.Collection(store.Materials).Get(ctx, matID)
	if err != nil {
		t.Fatalf("Get(material) failed: %v", err)
	}
	inv, err := db.Collection(store.Inventory).Get(ctx, matID)
	if err != nil {
		t.Fatalf("Get(inventory) failed: %v", err)
	}
	assert.Equal(t, mat.ID(), inv.ID()) // shared key
	assert.Equal(t, 10, inv.Int("totalStock"))
}

func TestBatchAllOrNothing(t *testing.T) {
	db := Open()
	defer db.Close()
	ctx := context.Background()

	// a failing op anywhere in the batch leaves no trace of the others
	b := db.Batch()
	id := b.Insert(store.Materials, store.Doc{"name": "Notes B"})
	b.Update(store.Inventory, "missing", store.Doc{"availableStock": store.Increment(1)})
	err := b.Commit(ctx)
	assert.True(t, store.IsNotFound(err))

	_, err = db.Collection(store.Materials).Get(ctx, id)
	assert.True(t, store.IsNotFound(err))
}

func TestBatchInsertThenUpdate(t *testing.T) {
	db := Open()
	defer db.Close()
	ctx := context.Background()

	b := db.Batch()
	id := b.Insert(store.Materials, store.Doc{"name": "Notes C", "price": 100.0})
	b.Update(store.Materials, id, store.Doc{"price": 120.0})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	doc, _ := db.Collection(store.Materials).Get(ctx, id)
	assert.Equal(t, 120.0, doc.Float("price"))
}

func TestSubscribe(t *testing.T) {
	db := Open()
	defer db.Close()
	ctx := context.Background()
	col := db.Collection(store.Courses)

	id, _ := col.Insert(ctx, store.Doc{"name": "Judiciary"})

	snaps := make(chan store.Snapshot, 4)
	unsub := col.Subscribe(func(snap store.Snapshot) { snaps <- snap })

	// initial snapshot reflects existing state
	snap := <-snaps
	assert.Len(t, snap, 1)
	assert.Equal(t, id, snap[0].ID())

	_, _ = col.Insert(ctx, store.Doc{"name": "CLAT"})
	snap = <-snaps
	assert.Len(t, snap, 2)

	unsub()
	_, _ = col.Insert(ctx, store.Doc{"name": "Judiciary Prelims"})
	select {
	case <-snaps:
		t.Fatal("subscriber notified after unsubscribe")
	default:
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	db := Open()
	defer db.Close()
	ctx := context.Background()
	col := db.Collection(store.Courses)

	id, _ := col.Insert(ctx, store.Doc{"name": "Judiciary"})
	doc, _ := col.Get(ctx, id)
	doc["name"] = "mutated"

	fresh, _ := col.Get(ctx, id)
	assert.Equal(t, "Judiciary", fresh.String("name"))
}
