package sales

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/finance"
	"github.com/acadhub/backend/core/store"
)

var ErrSaleNotFound = errors.New("sale not found")

// overridable for tests
var nowFunc = time.Now

// Service records study-material sales. Creating a sale snapshots the
// catalog price and writes exactly one linked income transaction.
//
// Two asymmetries are policy, not oversights: editing a sale never
// creates or adjusts a transaction (income corrections are a manual
// follow-up on the ledger, avoiding duplicate income), and deleting a
// sale leaves its linked transaction behind as an orphaned income
// record. Selling also does not decrement available stock; the
// inventory screen is the only stock mutator.
type Service struct {
	st     store.Store
	matSvc *MaterialService
	finSvc *finance.Service
}

func NewService(st store.Store, matSvc *MaterialService, finSvc *finance.Service) *Service {
	return &Service{st: st, matSvc: matSvc, finSvc: finSvc}
}

func (svc *Service) col() store.Collection {
	return svc.st.Collection(store.Sales)
}

// Create resolves the unit price from the catalog at submit time,
// writes the sale and then its linked income transaction. An unknown
// material rejects the whole operation before any write; a failed
// transaction write after the sale succeeded surfaces as a
// core.PartialWriteError.
func (svc *Service) Create(ctx context.Context, ns NewSale) (Sale, error) {
	material, err := svc.matSvc.GetByID(ctx, ns.MaterialID)
	if err != nil {
		if errors.Cause(err) == ErrMaterialNotFound {
			return Sale{}, core.NewValidationError(ErrMaterialNotFound, core.FieldError{Field: "material_id", Error: ErrMaterialNotFound.Error()})
		}
		return Sale{}, errors.Wrap(err, "resolving material")
	}

	saleDate := core.NewDate(nowFunc())
	sale := Sale{
		CustomerName: ns.CustomerName,
		MaterialID:   material.ID,
		MaterialName: material.Name,
		Quantity:     ns.Quantity,
		UnitPrice:    material.Price,
		TotalPrice:   material.Price.Mul(decimal.NewFromInt(int64(ns.Quantity))),
		Medium:       ns.Medium,
		SaleDate:     saleDate,
	}
	if ns.CollegeUniversity != "" {
		sale.CollegeUniversity = null.StringFrom(ns.CollegeUniversity)
	}

	id, err := svc.col().Insert(ctx, saleToDoc(sale))
	if err != nil {
		return Sale{}, errors.Wrap(err, "inserting sale")
	}
	sale.ID = id

	_, err = svc.finSvc.RecordLinkedIncome(ctx, finance.NewTransaction{
		Description: fmt.Sprintf("Sale of %d x %s to %s", sale.Quantity, sale.MaterialName, sale.CustomerName),
		Amount:      sale.TotalPrice,
		Type:        finance.TypeIncome,
		Category:    finance.CategorySales,
		Date:        saleDate.String(),
		SaleID:      sale.ID,
	})
	if err != nil {
		return sale, core.NewPartialWriteError(err,
			"sale record created",
			"income transaction was not recorded; add a Sales entry for the total price manually")
	}
	return sale, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Sale, error) {
	doc, err := svc.col().Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return Sale{}, ErrSaleNotFound
		}
		return Sale{}, err
	}
	return docToSale(doc), nil
}

// QueryAll returns sales ordered by sale date, most recent first.
func (svc *Service) QueryAll(ctx context.Context) ([]Sale, error) {
	docs, err := svc.col().All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying sales")
	}
	sales := make([]Sale, 0, len(docs))
	for _, doc := range docs {
		sales = append(sales, docToSale(doc))
	}
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].SaleDate.After(sales[j].SaleDate.Time) })
	return sales, nil
}

// TotalRevenue sums the price snapshots of all recorded sales.
func (svc *Service) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	sales, err := svc.QueryAll(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	for _, sale := range sales {
		total = total.Add(sale.TotalPrice)
	}
	return total, nil
}

// Update modifies the sale record only. The linked income transaction
// is deliberately never created or adjusted here; any financial
// correction from an edited sale is a manual follow-up on the ledger.
// The total price is recomputed against the stored unit-price snapshot,
// not the current catalog price.
func (svc *Service) Update(ctx context.Context, id string, us UpdateSale) (Sale, error) {
	orig, err := svc.GetByID(ctx, id)
	if err != nil {
		return Sale{}, err
	}

	fields := store.Doc{}
	if us.CustomerName != "" {
		fields["customerName"] = us.CustomerName
	}
	if us.Quantity > 0 && us.Quantity != orig.Quantity {
		fields["quantity"] = us.Quantity
		fields["totalPrice"] = orig.UnitPrice.Mul(decimal.NewFromInt(int64(us.Quantity))).InexactFloat64()
	}
	if us.Medium != "" {
		fields["medium"] = us.Medium
	}
	if us.CollegeUniversity != "" {
		fields["collegeUniversity"] = us.CollegeUniversity
	}
	if len(fields) == 0 {
		return orig, nil
	}

	if err = svc.col().Update(ctx, id, fields); err != nil {
		return Sale{}, errors.Wrap(err, "updating sale")
	}
	return svc.GetByID(ctx, id)
}

// Delete removes only the sale record. The linked transaction survives
// as an orphaned income record, kept so that recorded income never
// silently disappears.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.col().Delete(ctx, id); err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return ErrSaleNotFound
		}
		return errors.Wrap(err, "deleting sale")
	}
	return nil
}

func (svc *Service) Subscribe(fn func([]Sale)) store.UnsubscribeFunc {
	return svc.col().Subscribe(func(snap store.Snapshot) {
		sales := make([]Sale, 0, len(snap))
		for _, doc := range snap {
			sales = append(sales, docToSale(doc))
		}
		sort.SliceStable(sales, func(i, j int) bool { return sales[i].SaleDate.After(sales[j].SaleDate.Time) })
		fn(sales)
	})
}
