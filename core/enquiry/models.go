package enquiry

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/store"
)

// Enquiry statuses. The suggested flow is forward-only
// (Pending -> Followed-up -> Enrolled) but is not enforced; front desks
// routinely correct misclicks backwards.
const (
	StatusPending    = "Pending"
	StatusFollowedUp = "Followed-up"
	StatusEnrolled   = "Enrolled"
)

var Statuses = []string{StatusPending, StatusFollowedUp, StatusEnrolled}

// Enquiry is a prospective-student record.
type Enquiry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Mobile      string    `json:"mobile"`
	CourseID    string    `json:"course_id"`
	CourseName  string    `json:"course_name"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	EnquiryDate time.Time `json:"enquiry_date"`
}

// NewEnquiry contains information needed to log an enquiry.
type NewEnquiry struct {
	Name     string `json:"name" validate:"required"`
	Mobile   string `json:"mobile" validate:"required,mobile"`
	CourseID string `json:"course_id" validate:"required"`
	Notes    string `json:"notes"`
}

func (ne *NewEnquiry) Validate(validate *validator.Validate) error {
	ne.Name = core.CleanString(ne.Name)
	ne.Mobile = core.CleanString(ne.Mobile)
	ne.Notes = core.CleanString(ne.Notes)
	return validate.Struct(ne)
}

// UpdateEnquiry defines what information may be provided to modify an
// existing Enquiry.
type UpdateEnquiry struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile" validate:"omitempty,mobile"`
	Status string `json:"status" validate:"omitempty,oneof=Pending Followed-up Enrolled"`
	Notes  string `json:"notes"`
}

func (ue *UpdateEnquiry) Validate(validate *validator.Validate) error {
	ue.Name = core.CleanString(ue.Name)
	ue.Mobile = core.CleanString(ue.Mobile)
	ue.Notes = core.CleanString(ue.Notes)
	return validate.Struct(ue)
}

type QueryFilter struct {
	Search string `query:"search"` // matches name or mobile, case-insensitive
	Status string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == ""
}

func (qf *QueryFilter) Matches(e Enquiry) bool {
	if qf.Status != "" && e.Status != qf.Status {
		return false
	}
	if qf.Search != "" {
		needle := strings.ToLower(core.CleanString(qf.Search))
		if !strings.Contains(strings.ToLower(e.Name), needle) &&
			!strings.Contains(e.Mobile, needle) {
			return false
		}
	}
	return true
}

func docToEnquiry(doc store.Doc) Enquiry {
	return Enquiry{
		ID:          doc.ID(),
		Name:        doc.String("name"),
		Mobile:      doc.String("mobile"),
		CourseID:    doc.String("courseId"),
		CourseName:  doc.String("courseName"),
		Status:      doc.String("status"),
		Notes:       doc.String("notes"),
		EnquiryDate: doc.Time("enquiryDate"),
	}
}
