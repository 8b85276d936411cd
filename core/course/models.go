package course

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/store"
)

// Course is a catalog entry. Fee is the current price; students snapshot
// it into totalFee at enrollment and are not affected by later changes.
type Course struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Fee  decimal.Decimal `json:"fee"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Name string          `json:"name" validate:"required"`
	Fee  decimal.Decimal `json:"fee"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, svc *Service) error {
	nc.Name = core.CleanString(nc.Name)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	if nc.Fee.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "fee", Error: "fee cannot be negative"})
	}
	return svc.CheckNameUniqueness(nc.Name)
}

// UpdateCourse defines what information may be provided to modify an
// existing Course. Renaming only updates the catalog; course-name
// snapshots on students and enquiries require an explicit migration.
type UpdateCourse struct {
	Name string          `json:"name"`
	Fee  decimal.Decimal `json:"fee"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate, orig Course, svc *Service) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.Fee.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "fee", Error: "fee cannot be negative"})
	}
	return svc.CheckNameUniqueness(uc.Name, orig)
}

func docToCourse(doc store.Doc) Course {
	return Course{
		ID:   doc.ID(),
		Name: doc.String("name"),
		Fee:  doc.Decimal("fee"),
	}
}

func courseToDoc(c Course) store.Doc {
	return store.Doc{
		"name": c.Name,
		"fee":  c.Fee.InexactFloat64(),
	}
}
