package finance

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/store"
)

var ErrNotFound = errors.New("transaction not found")

// Service maintains the transactions ledger. All collection writes are
// single-document; nothing here requires the atomic batch guarantee.
type Service struct {
	st store.Store
}

func NewService(st store.Store) *Service {
	return &Service{st: st}
}

func (svc *Service) col() store.Collection {
	return svc.st.Collection(store.Transactions)
}

func (svc *Service) Create(ctx context.Context, nt NewTransaction) (Transaction, error) {
	date, err := core.ParseDate(nt.Date)
	if err != nil {
		return Transaction{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid calendar date"})
	}
	txn := Transaction{
		Description: nt.Description,
		Amount:      nt.Amount,
		Type:        nt.Type,
		Category:    nt.Category,
		Date:        core.NewDate(date),
		StudentID:   nt.StudentID,
		SaleID:      nt.SaleID,
	}
	id, err := svc.col().Insert(ctx, transactionToDoc(txn))
	if err != nil {
		return Transaction{}, errors.Wrap(err, "inserting transaction")
	}
	txn.ID = id
	return txn, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Transaction, error) {
	doc, err := svc.col().Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	return docToTransaction(doc), nil
}

// QueryAll returns the ledger ordered by date, most recent first.
func (svc *Service) QueryAll(ctx context.Context) ([]Transaction, error) {
	docs, err := svc.col().All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}
	txns := make([]Transaction, 0, len(docs))
	for _, doc := range docs {
		txns = append(txns, docToTransaction(doc))
	}
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Date.After(txns[j].Date.Time) })
	return txns, nil
}

func (svc *Service) Update(ctx context.Context, id string, upd UpdateTransaction) (Transaction, error) {
	orig, err := svc.GetByID(ctx, id)
	if err != nil {
		return Transaction{}, err
	}

	fields := store.Doc{}
	if upd.Description != "" {
		fields["description"] = upd.Description
	}
	if !upd.Amount.IsZero() {
		fields["amount"] = upd.Amount.InexactFloat64()
	}
	if upd.Type != "" {
		fields["type"] = upd.Type
	}
	if upd.Category != "" {
		fields["category"] = upd.Category
	}
	if upd.Date != "" {
		date, derr := core.ParseDate(upd.Date)
		if derr != nil {
			return Transaction{}, core.NewValidationError(derr, core.FieldError{Field: "date", Error: "invalid calendar date"})
		}
		fields["date"] = core.FormatDate(date)
	}
	if len(fields) == 0 {
		return orig, nil
	}

	if err = svc.col().Update(ctx, id, fields); err != nil {
		return Transaction{}, errors.Wrap(err, "updating transaction")
	}
	return svc.GetByID(ctx, id)
}

// Delete removes a ledger entry. Back-referenced students and sales are
// left untouched; corrections are a manual follow-up.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.col().Delete(ctx, id); err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "deleting transaction")
	}
	return nil
}

// Subscribe fans the transactions snapshot stream out to fn, mapped to
// domain transactions ordered by date descending.
func (svc *Service) Subscribe(fn func([]Transaction)) store.UnsubscribeFunc {
	return svc.col().Subscribe(func(snap store.Snapshot) {
		txns := make([]Transaction, 0, len(snap))
		for _, doc := range snap {
			txns = append(txns, docToTransaction(doc))
		}
		sort.SliceStable(txns, func(i, j int) bool { return txns[i].Date.After(txns[j].Date.Time) })
		fn(txns)
	})
}

// RecordLinkedIncome writes the income entry that a domain pipeline
// (fee payment, sale) links to its source record. Used by sibling
// services; failures bubble up so callers can surface the partial state.
func (svc *Service) RecordLinkedIncome(ctx context.Context, nt NewTransaction) (Transaction, error) {
	if nt.Date == "" {
		nt.Date = core.FormatDate(time.Now())
	}
	return svc.Create(ctx, nt)
}
