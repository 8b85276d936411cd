package enquiry

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/course"
	"github.com/acadhub/backend/core/store"
)

var (
	ErrNotFound      = errors.New("enquiry not found")
	ErrUnknownCourse = errors.New("selected course no longer exists")
)

type Service struct {
	st     store.Store
	crsSvc *course.Service
}

func NewService(st store.Store, crsSvc *course.Service) *Service {
	return &Service{st: st, crsSvc: crsSvc}
}

func (svc *Service) col() store.Collection {
	return svc.st.Collection(store.Enquiries)
}

func (svc *Service) Create(ctx context.Context, ne NewEnquiry) (Enquiry, error) {
	crs, err := svc.crsSvc.GetByID(ctx, ne.CourseID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return Enquiry{}, core.NewValidationError(ErrUnknownCourse, core.FieldError{Field: "course_id", Error: ErrUnknownCourse.Error()})
		}
		return Enquiry{}, errors.Wrap(err, "resolving course")
	}

	doc := store.Doc{
		"name":        ne.Name,
		"mobile":      ne.Mobile,
		"courseId":    crs.ID,
		"courseName":  crs.Name,
		"status":      StatusPending,
		"notes":       ne.Notes,
		"enquiryDate": store.ServerTimestamp(),
	}
	id, err := svc.col().Insert(ctx, doc)
	if err != nil {
		return Enquiry{}, errors.Wrap(err, "inserting enquiry")
	}
	return svc.GetByID(ctx, id)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Enquiry, error) {
	doc, err := svc.col().Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return Enquiry{}, ErrNotFound
		}
		return Enquiry{}, err
	}
	return docToEnquiry(doc), nil
}

// QueryAll returns enquiries ordered by enquiry date, most recent first.
func (svc *Service) QueryAll(ctx context.Context) ([]Enquiry, error) {
	docs, err := svc.col().All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying enquiries")
	}
	enquiries := make([]Enquiry, 0, len(docs))
	for _, doc := range docs {
		enquiries = append(enquiries, docToEnquiry(doc))
	}
	sort.SliceStable(enquiries, func(i, j int) bool { return enquiries[i].EnquiryDate.After(enquiries[j].EnquiryDate) })
	return enquiries, nil
}

// Filter applies AND semantics on the available QueryFilter fields.
func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Enquiry, error) {
	enquiries, err := svc.QueryAll(ctx)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return enquiries, nil
	}
	matched := make([]Enquiry, 0, len(enquiries))
	for _, enq := range enquiries {
		if filter.Matches(enq) {
			matched = append(matched, enq)
		}
	}
	return matched, nil
}

// PendingCount feeds the dashboard stat card.
func (svc *Service) PendingCount(ctx context.Context) (int, error) {
	enquiries, err := svc.Filter(ctx, QueryFilter{Status: StatusPending})
	if err != nil {
		return 0, err
	}
	return len(enquiries), nil
}

func (svc *Service) Update(ctx context.Context, id string, ue UpdateEnquiry) (Enquiry, error) {
	if _, err := svc.GetByID(ctx, id); err != nil {
		return Enquiry{}, err
	}

	fields := store.Doc{}
	if ue.Name != "" {
		fields["name"] = ue.Name
	}
	if ue.Mobile != "" {
		fields["mobile"] = ue.Mobile
	}
	if ue.Status != "" {
		fields["status"] = ue.Status
	}
	if ue.Notes != "" {
		fields["notes"] = ue.Notes
	}
	if len(fields) == 0 {
		return svc.GetByID(ctx, id)
	}

	if err := svc.col().Update(ctx, id, fields); err != nil {
		return Enquiry{}, errors.Wrap(err, "updating enquiry")
	}
	return svc.GetByID(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.col().Delete(ctx, id); err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "deleting enquiry")
	}
	return nil
}

func (svc *Service) Subscribe(fn func([]Enquiry)) store.UnsubscribeFunc {
	return svc.col().Subscribe(func(snap store.Snapshot) {
		enquiries := make([]Enquiry, 0, len(snap))
		for _, doc := range snap {
			enquiries = append(enquiries, docToEnquiry(doc))
		}
		sort.SliceStable(enquiries, func(i, j int) bool { return enquiries[i].EnquiryDate.After(enquiries[j].EnquiryDate) })
		fn(enquiries)
	})
}
