package sales

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/acadhub/backend/core"
	inmemstore "github.com/acadhub/backend/storage/entitystore/inmem"
)

func setupMaterials(t *testing.T) *MaterialService {
	db := inmemstore.Open()
	t.Cleanup(func() { _ = db.Close() })
	return NewMaterialService(db)
}

func TestMaterialCreatePairsInventory(t *testing.T) {
	svc := setupMaterials(t)
	ctx := context.Background()

	mat, err := svc.Create(ctx, NewMaterial{
		Name:         "Notes A",
		Price:        decimal.NewFromInt(150),
		InitialStock: 10,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	assert.NotEmpty(t, mat.ID)

	// the inventory item shares the catalog entry's id
	item, err := svc.GetInventoryItem(ctx, mat.ID)
	if err != nil {
		t.Fatalf("GetInventoryItem() failed: %v", err)
	}
	assert.Equal(t, mat.ID, item.ID)
	assert.Equal(t, "Notes A", item.Title)
	assert.Equal(t, 10, item.TotalStock)
	assert.Equal(t, 10, item.AvailableStock)
}

func TestMaterialUpdateSyncsTitle(t *testing.T) {
	svc := setupMaterials(t)
	ctx := context.Background()

	mat, err := svc.Create(ctx, NewMaterial{Name: "Notes A", Price: decimal.NewFromInt(150), InitialStock: 10})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	upd, err := svc.Update(ctx, mat.ID, UpdateMaterial{Name: "Notes A (2nd ed)", Price: decimal.NewFromInt(180)})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	assert.Equal(t, "Notes A (2nd ed)", upd.Name)
	assert.True(t, upd.Price.Equal(decimal.NewFromInt(180)))

	item, err := svc.GetInventoryItem(ctx, mat.ID)
	if err != nil {
		t.Fatalf("GetInventoryItem() failed: %v", err)
	}
	assert.Equal(t, "Notes A (2nd ed)", item.Title)
	assert.Equal(t, 10, item.TotalStock, "no stock delta means no stock change")
}

func TestMaterialUpdateWithStockDelta(t *testing.T) {
	svc := setupMaterials(t)
	ctx := context.Background()

	mat, err := svc.Create(ctx, NewMaterial{Name: "Notes A", Price: decimal.NewFromInt(150), InitialStock: 10})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if _, err = svc.Update(ctx, mat.ID, UpdateMaterial{StockDelta: 5}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	item, err := svc.GetInventoryItem(ctx, mat.ID)
	if err != nil {
		t.Fatalf("GetInventoryItem() failed: %v", err)
	}
	assert.Equal(t, 15, item.TotalStock)
	assert.Equal(t, 15, item.AvailableStock)
	assert.Equal(t, "Notes A", item.Title)
}

func TestMaterialDeleteRemovesBoth(t *testing.T) {
	svc := setupMaterials(t)
	ctx := context.Background()

	mat, err := svc.Create(ctx, NewMaterial{Name: "Notes A", Price: decimal.NewFromInt(150), InitialStock: 10})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	assert.NoError(t, svc.Delete(ctx, mat.ID))
	_, err = svc.GetByID(ctx, mat.ID)
	assert.Equal(t, ErrMaterialNotFound, errors.Cause(err))
	_, err = svc.GetInventoryItem(ctx, mat.ID)
	assert.Equal(t, ErrInventoryNotFound, errors.Cause(err))

	assert.Equal(t, ErrMaterialNotFound, errors.Cause(svc.Delete(ctx, mat.ID)))
}

func TestAddStock(t *testing.T) {
	svc := setupMaterials(t)
	ctx := context.Background()

	mat, err := svc.Create(ctx, NewMaterial{Name: "Notes A", Price: decimal.NewFromInt(150), InitialStock: 10})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	item, err := svc.AddStock(ctx, mat.ID, AddStock{Delta: 7})
	if err != nil {
		t.Fatalf("AddStock() failed: %v", err)
	}
	assert.Equal(t, 17, item.TotalStock)
	assert.Equal(t, 17, item.AvailableStock)

	_, err = svc.AddStock(ctx, mat.ID, AddStock{Delta: 0})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v; want ValidationError", err)
	}
	assert.Equal(t, "delta", vErr.Fields[0].Field)

	_, err = svc.AddStock(ctx, "nope", AddStock{Delta: 1})
	assert.Equal(t, ErrInventoryNotFound, errors.Cause(err))
}

func TestMaterialQueryAllSortsByName(t *testing.T) {
	svc := setupMaterials(t)
	ctx := context.Background()

	for _, name := range []string{"Mock Test Series", "Bare Acts", "Notes A"} {
		if _, err := svc.Create(ctx, NewMaterial{Name: name, Price: decimal.NewFromInt(100)}); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	materials, err := svc.QueryAll(ctx)
	if err != nil {
		t.Fatalf("QueryAll() failed: %v", err)
	}
	names := make([]string, 0, len(materials))
	for _, mat := range materials {
		names = append(names, mat.Name)
	}
	assert.Equal(t, []string{"Bare Acts", "Mock Test Series", "Notes A"}, names)
}

func TestNewMaterialValidate(t *testing.T) {
	validate := validator.New()

	nm := NewMaterial{Name: "  Notes A ", Price: decimal.NewFromInt(150), InitialStock: 5}
	assert.NoError(t, nm.Validate(validate))
	assert.Equal(t, "Notes A", nm.Name)

	bad := NewMaterial{Name: "Notes A", Price: decimal.NewFromInt(-1)}
	assert.Error(t, bad.Validate(validate))

	bad = NewMaterial{Name: "Notes A", InitialStock: -3}
	assert.Error(t, bad.Validate(validate))
}
