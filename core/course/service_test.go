package course

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/acadhub/backend/core/store"
	inmemstore "github.com/acadhub/backend/storage/entitystore/inmem"
)

func setup(t *testing.T) (*Service, store.Store) {
	db := inmemstore.Open()
	t.Cleanup(func() { _ = db.Close() })
	return NewService(db), db
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	crs, err := svc.Create(ctx, NewCourse{Name: "Judiciary", Fee: decimal.NewFromInt(50000)})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	assert.NotEmpty(t, crs.ID)

	got, err := svc.GetByID(ctx, crs.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	assert.Equal(t, "Judiciary", got.Name)
	assert.True(t, got.Fee.Equal(decimal.NewFromInt(50000)))
}

func TestCheckNameUniqueness(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	crs, _ := svc.Create(ctx, NewCourse{Name: "Judiciary", Fee: decimal.NewFromInt(50000)})

	// names are display keys, duplicates are ambiguous
	assert.Error(t, svc.CheckNameUniqueness("Judiciary"))
	assert.Error(t, svc.CheckNameUniqueness("jUDICIARY")) // case-insensitive
	assert.NoError(t, svc.CheckNameUniqueness("CLAT"))

	// the course itself is excluded when validating its own rename
	assert.NoError(t, svc.CheckNameUniqueness("Judiciary", crs))
}

func TestNewCourseValidate(t *testing.T) {
	svc, _ := setup(t)
	validate := validator.New()

	nc := NewCourse{Name: "  Judiciary  ", Fee: decimal.NewFromInt(100)}
	if err := nc.Validate(validate, svc); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	assert.Equal(t, "Judiciary", nc.Name) // cleaned

	bad := NewCourse{Name: "CLAT", Fee: decimal.NewFromInt(-1)}
	assert.Error(t, bad.Validate(validate, svc))
}

func TestQueryAllSortsByName(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for _, name := range []string{"Judiciary", "APO", "CLAT"} {
		if _, err := svc.Create(ctx, NewCourse{Name: name}); err != nil {
			t.Fatalf("Create(%s) failed: %v", name, err)
		}
	}

	courses, err := svc.QueryAll(ctx)
	if err != nil {
		t.Fatalf("QueryAll() failed: %v", err)
	}
	assert.Equal(t, "APO", courses[0].Name)
	assert.Equal(t, "CLAT", courses[1].Name)
	assert.Equal(t, "Judiciary", courses[2].Name)
}

func TestUpdate(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	crs, _ := svc.Create(ctx, NewCourse{Name: "Judiciary", Fee: decimal.NewFromInt(50000)})

	got, err := svc.Update(ctx, crs.ID, UpdateCourse{Name: "Judiciary Mains", Fee: decimal.NewFromInt(60000)})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	assert.Equal(t, "Judiciary Mains", got.Name)
	assert.True(t, got.Fee.Equal(decimal.NewFromInt(60000)))
}

func TestDeleteDoesNotCascade(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	crs, _ := svc.Create(ctx, NewCourse{Name: "Judiciary", Fee: decimal.NewFromInt(50000)})

	// an enrolled student carrying the course snapshot
	stuID, err := db.Collection(store.Students).Insert(ctx, store.Doc{
		"fullName":   "Asha Verma",
		"courseId":   crs.ID,
		"courseName": crs.Name,
	})
	if err != nil {
		t.Fatalf("seeding student failed: %v", err)
	}

	if err = svc.Delete(ctx, crs.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	_, err = svc.GetByID(ctx, crs.ID)
	assert.Equal(t, ErrNotFound, err)

	// the student and their snapshot survive
	doc, err := db.Collection(store.Students).Get(ctx, stuID)
	if err != nil {
		t.Fatalf("Get(student) failed: %v", err)
	}
	assert.Equal(t, "Judiciary", doc.String("courseName"))
}

func TestMigrateName(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	crs, _ := svc.Create(ctx, NewCourse{Name: "Judiciary", Fee: decimal.NewFromInt(50000)})

	stale := store.Doc{"courseId": crs.ID, "courseName": "Judiciary"}
	stuID, _ := db.Collection(store.Students).Insert(ctx, stale.Clone())
	enqID, _ := db.Collection(store.Enquiries).Insert(ctx, stale.Clone())
	otherID, _ := db.Collection(store.Students).Insert(ctx, store.Doc{
		"courseId": "other", "courseName": "CLAT",
	})

	if _, err := svc.Update(ctx, crs.ID, UpdateCourse{Name: "Judiciary Mains"}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	// rename alone leaves snapshots stale
	doc, _ := db.Collection(store.Students).Get(ctx, stuID)
	assert.Equal(t, "Judiciary", doc.String("courseName"))

	migrated, err := svc.MigrateName(ctx, crs.ID)
	if err != nil {
		t.Fatalf("MigrateName() failed: %v", err)
	}
	assert.Equal(t, 2, migrated)

	doc, _ = db.Collection(store.Students).Get(ctx, stuID)
	assert.Equal(t, "Judiciary Mains", doc.String("courseName"))
	doc, _ = db.Collection(store.Enquiries).Get(ctx, enqID)
	assert.Equal(t, "Judiciary Mains", doc.String("courseName"))

	// unrelated records untouched
	doc, _ = db.Collection(store.Students).Get(ctx, otherID)
	assert.Equal(t, "CLAT", doc.String("courseName"))

	// second run is a no-op
	migrated, _ = svc.MigrateName(ctx, crs.ID)
	assert.Equal(t, 0, migrated)
}
