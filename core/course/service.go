package course

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/store"
)

var (
	ErrNotFound   = errors.New("course not found")
	ErrNameExists = errors.New("a course with this name already exists")
)

type Service struct {
	st store.Store
}

func NewService(st store.Store) *Service {
	return &Service{st: st}
}

func (svc *Service) col() store.Collection {
	return svc.st.Collection(store.Courses)
}

// CheckNameUniqueness rejects names already carried by another course.
// Names act as display keys throughout the UI, so duplicates would make
// enrollments ambiguous.
func (svc *Service) CheckNameUniqueness(name string, excluded ...Course) error {
	courses, err := svc.QueryAll(context.Background())
	if err != nil {
		return err
	}
	for _, c := range courses {
		if !strings.EqualFold(c.Name, name) {
			continue
		}
		var excl bool
		for _, ex := range excluded {
			if ex.ID == c.ID {
				excl = true
				break
			}
		}
		if !excl {
			return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
		}
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	crs := Course{Name: nc.Name, Fee: nc.Fee}
	id, err := svc.col().Insert(ctx, courseToDoc(crs))
	if err != nil {
		return Course{}, errors.Wrap(err, "inserting course")
	}
	crs.ID = id
	return crs, nil
}

// QueryAll returns the catalog sorted by name.
func (svc *Service) QueryAll(ctx context.Context) ([]Course, error) {
	docs, err := svc.col().All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]Course, 0, len(docs))
	for _, doc := range docs {
		courses = append(courses, docToCourse(doc))
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	doc, err := svc.col().Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return Course{}, ErrNotFound
		}
		return Course{}, err
	}
	return docToCourse(doc), nil
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	fields := store.Doc{"name": uc.Name}
	if !uc.Fee.IsZero() {
		fields["fee"] = uc.Fee.InexactFloat64()
	}
	if err := svc.col().Update(ctx, id, fields); err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return Course{}, ErrNotFound
		}
		return Course{}, errors.Wrap(err, "updating course")
	}
	return svc.GetByID(ctx, id)
}

// Delete removes a catalog entry. Students already enrolled keep their
// course snapshot untouched; there is no cascading delete.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.col().Delete(ctx, id); err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "deleting course")
	}
	return nil
}

// MigrateName rewrites the courseName snapshot on every student and
// enquiry referencing the course by id. Renames deliberately do not do
// this implicitly; stale snapshots only matter for display, and an
// explicit migration keeps the rename itself a single cheap write.
func (svc *Service) MigrateName(ctx context.Context, courseID string) (migrated int, err error) {
	crs, err := svc.GetByID(ctx, courseID)
	if err != nil {
		return 0, err
	}

	for _, colName := range []string{store.Students, store.Enquiries} {
		col := svc.st.Collection(colName)
		docs, err := col.All(ctx)
		if err != nil {
			return migrated, errors.Wrapf(err, "querying %s", colName)
		}
		for _, doc := range docs {
			if doc.String("courseId") != courseID || doc.String("courseName") == crs.Name {
				continue
			}
			if err = col.Update(ctx, doc.ID(), store.Doc{"courseName": crs.Name}); err != nil {
				return migrated, errors.Wrapf(err, "migrating %s/%s", colName, doc.ID())
			}
			migrated++
		}
	}
	return migrated, nil
}

func (svc *Service) Subscribe(fn func([]Course)) store.UnsubscribeFunc {
	return svc.col().Subscribe(func(snap store.Snapshot) {
		courses := make([]Course, 0, len(snap))
		for _, doc := range snap {
			courses = append(courses, docToCourse(doc))
		}
		sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
		fn(courses)
	})
}
