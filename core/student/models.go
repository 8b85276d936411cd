package student

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/store"
)

// Payment modes
const (
	ModeCash         = "Cash"
	ModeUPI          = "UPI"
	ModeBankTransfer = "Bank Transfer"
)

var PaymentModes = []string{ModeCash, ModeUPI, ModeBankTransfer}

type (
	// Payment is an embedded fee installment. Timestamp is the creation
	// instant, used for stable ordering and slip numbering; Date is the
	// calendar date the money changed hands.
	Payment struct {
		Amount    decimal.Decimal `json:"amount"`
		Mode      string          `json:"mode"`
		Date      core.Date       `json:"date"`
		Timestamp time.Time       `json:"timestamp"`
	}

	// Student is an enrollment record. PaymentHistory is the source of
	// truth for money received; AmountPaid is an advisory running total
	// kept equal to the history sum after every mutation. TotalFee is a
	// snapshot of the course fee at enrollment time and is not
	// live-linked to later course fee changes. Roll is immutable once
	// assigned.
	Student struct {
		ID             string          `json:"id"`
		FullName       string          `json:"full_name"`
		FathersName    string          `json:"fathers_name"`
		Mobile         string          `json:"mobile"`
		Email          null.String     `json:"email,omitempty"`
		DOB            string          `json:"dob"`
		Address        string          `json:"address"`
		Roll           string          `json:"roll"`
		CourseID       string          `json:"course_id"`
		CourseName     string          `json:"course_name"`
		EnrollmentYear int             `json:"enrollment_year"`
		EnrollmentDate core.Date       `json:"enrollment_date"`
		TotalFee       decimal.Decimal `json:"total_fee"`
		AmountPaid     decimal.Decimal `json:"amount_paid"`
		PaymentHistory []Payment       `json:"payment_history"`
		LastUpdated    time.Time       `json:"last_updated"`
	}
)

// Due returns the outstanding balance.
func (s Student) Due() decimal.Decimal {
	return s.TotalFee.Sub(s.AmountPaid)
}

// HistoryTotal sums the payment history, the authoritative figure for
// money received from this student.
func (s Student) HistoryTotal() decimal.Decimal {
	var total decimal.Decimal
	for _, p := range s.PaymentHistory {
		total = total.Add(p.Amount)
	}
	return total
}

// NewStudent contains information needed to register a Student.
// AmountPaid, when positive, seeds the payment history and produces a
// linked income transaction.
type NewStudent struct {
	FullName    string          `json:"full_name" validate:"required"`
	FathersName string          `json:"fathers_name" validate:"required"`
	Mobile      string          `json:"mobile" validate:"required,mobile"`
	Email       string          `json:"email" validate:"omitempty,email"`
	DOB         string          `json:"dob" validate:"required,caldate"`
	Address     string          `json:"address" validate:"required,min=5"`
	CourseID    string          `json:"course_id" validate:"required"`
	TotalFee    decimal.Decimal `json:"total_fee"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	PaymentMode string          `json:"payment_mode" validate:"omitempty,oneof=Cash UPI 'Bank Transfer'"`
	PaymentDate string          `json:"payment_date" validate:"omitempty,caldate"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.FullName = core.CleanString(ns.FullName)
	ns.FathersName = core.CleanString(ns.FathersName)
	ns.Mobile = core.CleanString(ns.Mobile)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Address = core.CleanString(ns.Address)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.TotalFee.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "total_fee", Error: "total fee cannot be negative"})
	}
	if ns.AmountPaid.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount_paid", Error: "amount paid cannot be negative"})
	}
	if ns.AmountPaid.IsPositive() && ns.PaymentMode == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "payment_mode", Error: "payment mode is required when an amount is paid"})
	}
	return nil
}

// UpdateStudent defines what information may be provided to modify an
// existing Student. Roll, course, enrollment year and the money fields
// are deliberately absent: roll is immutable, money moves only through
// payment recording and reconciliation.
type UpdateStudent struct {
	FullName    string `json:"full_name"`
	FathersName string `json:"fathers_name"`
	Mobile      string `json:"mobile" validate:"omitempty,mobile"`
	Email       string `json:"email" validate:"omitempty,email"`
	DOB         string `json:"dob" validate:"omitempty,caldate"`
	Address     string `json:"address" validate:"omitempty,min=5"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.FullName = core.CleanString(us.FullName)
	us.FathersName = core.CleanString(us.FathersName)
	us.Mobile = core.CleanString(us.Mobile)
	us.Email = core.CleanString(us.Email, true /* lower */)
	us.Address = core.CleanString(us.Address)

	return validate.Struct(us)
}

// NewPayment contains information needed to record an additional fee
// installment on an existing student.
type NewPayment struct {
	Amount decimal.Decimal `json:"amount"`
	Mode   string          `json:"mode" validate:"required,oneof=Cash UPI 'Bank Transfer'"`
	Date   string          `json:"date" validate:"required,caldate"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.Amount.LessThanOrEqual(decimal.Zero) {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be greater than zero"})
	}
	return nil
}

type QueryFilter struct {
	Search   string `query:"search"` // matches name or roll, case-insensitive
	CourseID string `query:"course_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.CourseID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

func (qf *QueryFilter) Matches(s Student) bool {
	if qf.CourseID != "" && s.CourseID != qf.CourseID {
		return false
	}
	if qf.Search != "" {
		needle := strings.ToLower(qf.Search)
		if !strings.Contains(strings.ToLower(s.FullName), needle) &&
			!strings.Contains(strings.ToLower(s.Roll), needle) {
			return false
		}
	}
	return true
}

func docToStudent(doc store.Doc) Student {
	s := Student{
		ID:             doc.ID(),
		FullName:       doc.String("fullName"),
		FathersName:    doc.String("fathersName"),
		Mobile:         doc.String("mobile"),
		DOB:            doc.String("dob"),
		Address:        doc.String("address"),
		Roll:           doc.String("roll"),
		CourseID:       doc.String("courseId"),
		CourseName:     doc.String("courseName"),
		EnrollmentYear: doc.Int("enrollmentYear"),
		EnrollmentDate: core.NewDate(doc.Time("enrollmentDate")),
		TotalFee:       doc.Decimal("totalFee"),
		AmountPaid:     doc.Decimal("amountPaid"),
		LastUpdated:    doc.Time("lastUpdated"),
	}
	if email := doc.String("email"); email != "" {
		s.Email = null.StringFrom(email)
	}
	for _, p := range doc.Docs("paymentHistory") {
		s.PaymentHistory = append(s.PaymentHistory, Payment{
			Amount:    p.Decimal("amount"),
			Mode:      p.String("mode"),
			Date:      core.NewDate(p.Time("date")),
			Timestamp: p.Time("timestamp"),
		})
	}
	return s
}

func studentToDoc(s Student) store.Doc {
	doc := store.Doc{
		"fullName":       s.FullName,
		"fathersName":    s.FathersName,
		"mobile":         s.Mobile,
		"dob":            s.DOB,
		"address":        s.Address,
		"roll":           s.Roll,
		"courseId":       s.CourseID,
		"courseName":     s.CourseName,
		"enrollmentYear": s.EnrollmentYear,
		"enrollmentDate": s.EnrollmentDate.String(),
		"totalFee":       s.TotalFee.InexactFloat64(),
		"amountPaid":     s.AmountPaid.InexactFloat64(),
		"paymentHistory": paymentsToDocs(s.PaymentHistory),
	}
	if s.Email.Valid {
		doc["email"] = s.Email.String
	}
	return doc
}

func paymentsToDocs(payments []Payment) []interface{} {
	docs := make([]interface{}, 0, len(payments))
	for _, p := range payments {
		docs = append(docs, map[string]interface{}{
			"amount":    p.Amount.InexactFloat64(),
			"mode":      p.Mode,
			"date":      p.Date.String(),
			"timestamp": p.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return docs
}
