package sales

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/acadhub/backend/core/store"
)

var (
	ErrMaterialNotFound  = errors.New("study material not found")
	ErrInventoryNotFound = errors.New("inventory item not found")
)

// MaterialService keeps the materials catalog and the inventory stock
// ledger in lockstep. The two collections share document ids (one
// logical entity, two documents), so every mutation that touches both
// goes through one atomic batch; there is never an intermediate state
// where only one of the pair exists.
type MaterialService struct {
	st store.Store
}

func NewMaterialService(st store.Store) *MaterialService {
	return &MaterialService{st: st}
}

func (svc *MaterialService) materials() store.Collection {
	return svc.st.Collection(store.Materials)
}

func (svc *MaterialService) inventory() store.Collection {
	return svc.st.Collection(store.Inventory)
}

// Create adds a catalog entry together with its same-id inventory item
// in one all-or-nothing batch.
func (svc *MaterialService) Create(ctx context.Context, nm NewMaterial) (StudyMaterial, error) {
	batch := svc.st.Batch()
	id := batch.Insert(store.Materials, store.Doc{
		"name":  nm.Name,
		"price": nm.Price.InexactFloat64(),
	})
	batch.InsertWithID(store.Inventory, id, store.Doc{
		"title":          nm.Name,
		"totalStock":     nm.InitialStock,
		"availableStock": nm.InitialStock,
	})
	if err := batch.Commit(ctx); err != nil {
		return StudyMaterial{}, errors.Wrap(err, "creating material")
	}
	return StudyMaterial{ID: id, Name: nm.Name, Price: nm.Price}, nil
}

// Update modifies the catalog entry and mirrors the (possibly renamed)
// title into the inventory item in the same batch. A positive stock
// delta rides along as one atomic increment on both counters, never as
// two separate writes, so AvailableStock <= TotalStock cannot be broken
// by a half-applied top-up.
func (svc *MaterialService) Update(ctx context.Context, id string, um UpdateMaterial) (StudyMaterial, error) {
	orig, err := svc.GetByID(ctx, id)
	if err != nil {
		return StudyMaterial{}, err
	}

	name := um.Name
	if name == "" {
		name = orig.Name
	}
	price := um.Price
	if price.IsZero() {
		price = orig.Price
	}

	batch := svc.st.Batch()
	batch.Update(store.Materials, id, store.Doc{
		"name":  name,
		"price": price.InexactFloat64(),
	})
	invFields := store.Doc{"title": name}
	if um.StockDelta > 0 {
		invFields["totalStock"] = store.Increment(float64(um.StockDelta))
		invFields["availableStock"] = store.Increment(float64(um.StockDelta))
	}
	batch.Update(store.Inventory, id, invFields)
	if err := batch.Commit(ctx); err != nil {
		return StudyMaterial{}, errors.Wrap(err, "updating material")
	}
	return StudyMaterial{ID: id, Name: name, Price: price}, nil
}

// Delete removes the catalog entry and its inventory item together.
// This is the one place the system cascades, and it must stay atomic.
func (svc *MaterialService) Delete(ctx context.Context, id string) error {
	if _, err := svc.GetByID(ctx, id); err != nil {
		return err
	}

	batch := svc.st.Batch()
	batch.Delete(store.Materials, id)
	batch.Delete(store.Inventory, id)
	if err := batch.Commit(ctx); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return nil
}

// AddStock is the inventory screen's direct top-up: one atomic
// increment of both counters by the same positive delta.
func (svc *MaterialService) AddStock(ctx context.Context, id string, as AddStock) (InventoryItem, error) {
	if err := as.Validate(); err != nil {
		return InventoryItem{}, err
	}
	if _, err := svc.GetInventoryItem(ctx, id); err != nil {
		return InventoryItem{}, err
	}

	err := svc.inventory().Update(ctx, id, store.Doc{
		"totalStock":     store.Increment(float64(as.Delta)),
		"availableStock": store.Increment(float64(as.Delta)),
	})
	if err != nil {
		return InventoryItem{}, errors.Wrap(err, "adding stock")
	}
	return svc.GetInventoryItem(ctx, id)
}

func (svc *MaterialService) GetByID(ctx context.Context, id string) (StudyMaterial, error) {
	doc, err := svc.materials().Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return StudyMaterial{}, ErrMaterialNotFound
		}
		return StudyMaterial{}, err
	}
	return docToMaterial(doc), nil
}

func (svc *MaterialService) GetInventoryItem(ctx context.Context, id string) (InventoryItem, error) {
	doc, err := svc.inventory().Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return InventoryItem{}, ErrInventoryNotFound
		}
		return InventoryItem{}, err
	}
	return docToInventoryItem(doc), nil
}

// QueryAll returns the catalog sorted by name.
func (svc *MaterialService) QueryAll(ctx context.Context) ([]StudyMaterial, error) {
	docs, err := svc.materials().All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	materials := make([]StudyMaterial, 0, len(docs))
	for _, doc := range docs {
		materials = append(materials, docToMaterial(doc))
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i].Name < materials[j].Name })
	return materials, nil
}

// QueryInventory returns the stock ledger sorted by title.
func (svc *MaterialService) QueryInventory(ctx context.Context) ([]InventoryItem, error) {
	docs, err := svc.inventory().All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying inventory")
	}
	items := make([]InventoryItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, docToInventoryItem(doc))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Title < items[j].Title })
	return items, nil
}

func (svc *MaterialService) SubscribeInventory(fn func([]InventoryItem)) store.UnsubscribeFunc {
	return svc.inventory().Subscribe(func(snap store.Snapshot) {
		items := make([]InventoryItem, 0, len(snap))
		for _, doc := range snap {
			items = append(items, docToInventoryItem(doc))
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Title < items[j].Title })
		fn(items)
	})
}
