package finance

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/store"
)

// Transaction types
const (
	TypeIncome  = "Income"
	TypeExpense = "Expense"
)

// Categories of income transactions written by the domain pipelines.
const (
	CategoryFeeCollection = "Fee Collection"
	CategorySales         = "Sales"
)

var (
	// recommended free-text categories, conditioned on type
	IncomeCategories  = []string{CategoryFeeCollection, CategorySales, "Miscellaneous"}
	ExpenseCategories = []string{"Rent", "Utilities", "Salaries", "Marketing", "Supplies", "Miscellaneous"}
)

// Transaction is one entry in the money ledger. The ledger is the
// authoritative record of money movement for aggregation; StudentID and
// SaleID are one-way back-references with no enforced referential
// integrity (editing or deleting the source never touches the entry).
type Transaction struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Date        core.Date       `json:"date"`
	StudentID   string          `json:"student_id,omitempty"`
	SaleID      string          `json:"sale_id,omitempty"`
}

// NewTransaction contains information needed to record a ledger entry.
type NewTransaction struct {
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" validate:"required,oneof=Income Expense"`
	Category    string          `json:"category" validate:"required"`
	Date        string          `json:"date" validate:"required,caldate"`
	StudentID   string          `json:"student_id"`
	SaleID      string          `json:"sale_id"`
}

func (nt *NewTransaction) Validate(validate *validator.Validate) error {
	nt.Description = core.CleanString(nt.Description)
	nt.Category = core.CleanString(nt.Category)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return validateAmount(nt.Amount)
}

// UpdateTransaction defines what information may be provided to modify
// an existing Transaction. Zero values leave the field untouched.
type UpdateTransaction struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" validate:"omitempty,oneof=Income Expense"`
	Category    string          `json:"category"`
	Date        string          `json:"date" validate:"omitempty,caldate"`
}

func (upd *UpdateTransaction) Validate(validate *validator.Validate) error {
	upd.Description = core.CleanString(upd.Description)
	upd.Category = core.CleanString(upd.Category)

	if err := validate.Struct(upd); err != nil {
		return err
	}
	if !upd.Amount.IsZero() {
		return validateAmount(upd.Amount)
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be greater than zero"})
	}
	return nil
}

func docToTransaction(doc store.Doc) Transaction {
	return Transaction{
		ID:          doc.ID(),
		Description: doc.String("description"),
		Amount:      doc.Decimal("amount"),
		Type:        doc.String("type"),
		Category:    doc.String("category"),
		Date:        core.NewDate(doc.Time("date")),
		StudentID:   doc.String("studentId"),
		SaleID:      doc.String("saleId"),
	}
}

func transactionToDoc(txn Transaction) store.Doc {
	doc := store.Doc{
		"description": txn.Description,
		"amount":      txn.Amount.InexactFloat64(),
		"type":        txn.Type,
		"category":    txn.Category,
		"date":        txn.Date.String(),
	}
	if txn.StudentID != "" {
		doc["studentId"] = txn.StudentID
	}
	if txn.SaleID != "" {
		doc["saleId"] = txn.SaleID
	}
	return doc
}
