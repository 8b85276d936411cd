package sales

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/store"
)

// Sale mediums
const (
	MediumEnglish = "English"
	MediumHindi   = "Hindi"
)

var Mediums = []string{MediumEnglish, MediumHindi}

type (
	// StudyMaterial is a catalog entry. Price is the current unit price;
	// sales snapshot it at sale time.
	StudyMaterial struct {
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	}

	// InventoryItem is the stock ledger counterpart of a StudyMaterial,
	// sharing its id (a shared-key 1:1 relationship, not a foreign key
	// field). Title mirrors the material name and is kept in sync by the
	// catalog batches. TotalStock is lifetime units received,
	// AvailableStock the currently sellable units; AvailableStock never
	// exceeds TotalStock.
	InventoryItem struct {
		ID             string `json:"id"`
		Title          string `json:"title"`
		TotalStock     int    `json:"total_stock"`
		AvailableStock int    `json:"available_stock"`
	}

	// Sale is a study-material sale with a price snapshot.
	// TotalPrice == Quantity x UnitPrice at sale time.
	Sale struct {
		ID                string          `json:"id"`
		CustomerName      string          `json:"customer_name"`
		MaterialID        string          `json:"material_id"`
		MaterialName      string          `json:"material_name"`
		Quantity          int             `json:"quantity"`
		UnitPrice         decimal.Decimal `json:"unit_price"`
		TotalPrice        decimal.Decimal `json:"total_price"`
		Medium            string          `json:"medium"`
		CollegeUniversity null.String     `json:"college_university,omitempty"`
		SaleDate          core.Date       `json:"sale_date"`
	}
)

// NewMaterial contains information needed to add a catalog entry with
// its initial stock.
type NewMaterial struct {
	Name         string          `json:"name" validate:"required"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)

	if err := validate.Struct(nm); err != nil {
		return err
	}
	if nm.Price.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "price", Error: "price cannot be negative"})
	}
	if nm.InitialStock < 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "initial_stock", Error: "initial stock cannot be negative"})
	}
	return nil
}

// UpdateMaterial defines what may be modified on a catalog entry.
// StockDelta, when positive, is applied as one atomic increment to both
// stock counters alongside the field updates.
type UpdateMaterial struct {
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	StockDelta int             `json:"stock_delta"`
}

func (um *UpdateMaterial) Validate(validate *validator.Validate) error {
	um.Name = core.CleanString(um.Name)

	if err := validate.Struct(um); err != nil {
		return err
	}
	if um.Price.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "price", Error: "price cannot be negative"})
	}
	if um.StockDelta < 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "stock_delta", Error: "stock delta cannot be negative"})
	}
	return nil
}

// NewSale contains information needed to record a sale. The unit price
// is resolved from the catalog at submit time, never taken from the
// form.
type NewSale struct {
	CustomerName      string `json:"customer_name" validate:"required"`
	MaterialID        string `json:"material_id" validate:"required"`
	Quantity          int    `json:"quantity" validate:"required,min=1"`
	Medium            string `json:"medium" validate:"required,oneof=English Hindi"`
	CollegeUniversity string `json:"college_university"`
}

func (ns *NewSale) Validate(validate *validator.Validate) error {
	ns.CustomerName = core.CleanString(ns.CustomerName)
	ns.CollegeUniversity = core.CleanString(ns.CollegeUniversity)
	return validate.Struct(ns)
}

// UpdateSale defines what may be modified on an existing sale record.
type UpdateSale struct {
	CustomerName      string `json:"customer_name"`
	Quantity          int    `json:"quantity" validate:"omitempty,min=1"`
	Medium            string `json:"medium" validate:"omitempty,oneof=English Hindi"`
	CollegeUniversity string `json:"college_university"`
}

func (us *UpdateSale) Validate(validate *validator.Validate) error {
	us.CustomerName = core.CleanString(us.CustomerName)
	us.CollegeUniversity = core.CleanString(us.CollegeUniversity)
	return validate.Struct(us)
}

// AddStock is the inventory screen's direct stock top-up.
type AddStock struct {
	Delta int `json:"delta"`
}

func (as *AddStock) Validate() error {
	if as.Delta <= 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "delta", Error: "stock quantity must be greater than zero"})
	}
	return nil
}

func docToMaterial(doc store.Doc) StudyMaterial {
	return StudyMaterial{
		ID:    doc.ID(),
		Name:  doc.String("name"),
		Price: doc.Decimal("price"),
	}
}

func docToInventoryItem(doc store.Doc) InventoryItem {
	return InventoryItem{
		ID:             doc.ID(),
		Title:          doc.String("title"),
		TotalStock:     doc.Int("totalStock"),
		AvailableStock: doc.Int("availableStock"),
	}
}

func docToSale(doc store.Doc) Sale {
	s := Sale{
		ID:           doc.ID(),
		CustomerName: doc.String("customerName"),
		MaterialID:   doc.String("materialId"),
		MaterialName: doc.String("materialName"),
		Quantity:     doc.Int("quantity"),
		UnitPrice:    doc.Decimal("unitPrice"),
		TotalPrice:   doc.Decimal("totalPrice"),
		Medium:       doc.String("medium"),
		SaleDate:     core.NewDate(doc.Time("saleDate")),
	}
	if cu := doc.String("collegeUniversity"); cu != "" {
		s.CollegeUniversity = null.StringFrom(cu)
	}
	return s
}

func saleToDoc(s Sale) store.Doc {
	doc := store.Doc{
		"customerName": s.CustomerName,
		"materialId":   s.MaterialID,
		"materialName": s.MaterialName,
		"quantity":     s.Quantity,
		"unitPrice":    s.UnitPrice.InexactFloat64(),
		"totalPrice":   s.TotalPrice.InexactFloat64(),
		"medium":       s.Medium,
		"saleDate":     s.SaleDate.String(),
	}
	if s.CollegeUniversity.Valid {
		doc["collegeUniversity"] = s.CollegeUniversity.String
	}
	return doc
}
