package student

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/course"
	"github.com/acadhub/backend/core/finance"
	"github.com/acadhub/backend/core/store"
)

var (
	ErrNotFound      = errors.New("student not found")
	ErrUnknownCourse = errors.New("selected course no longer exists")
)

// overridable for tests
var nowFunc = time.Now

// Service is the fee ledger engine: every change in money received from
// a student produces exactly one embedded payment-history entry and one
// entry in the transactions ledger. The two writes are not atomic; when
// the ledger write fails after the student write succeeded the caller
// receives a core.PartialWriteError and must surface reconciliation
// guidance instead of a generic failure.
type Service struct {
	st      store.Store
	crsSvc  *course.Service
	finSvc  *finance.Service
	mailSvc core.EmailService
}

func NewService(st store.Store, crsSvc *course.Service, finSvc *finance.Service, mailSvc core.EmailService) *Service {
	return &Service{st: st, crsSvc: crsSvc, finSvc: finSvc, mailSvc: mailSvc}
}

func (svc *Service) col() store.Collection {
	return svc.st.Collection(store.Students)
}

// Register enrolls a new student. The course is resolved at submit time
// (an unknown id rejects the whole operation before any write), the
// roll number is allocated from the serialized per-course/per-year
// counter, and an initial payment, when present, seeds the payment
// history and is mirrored into the ledger.
func (svc *Service) Register(ctx context.Context, ns NewStudent) (Student, error) {
	crs, err := svc.crsSvc.GetByID(ctx, ns.CourseID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return Student{}, core.NewValidationError(ErrUnknownCourse, core.FieldError{Field: "course_id", Error: ErrUnknownCourse.Error()})
		}
		return Student{}, errors.Wrap(err, "resolving course")
	}

	now := nowFunc()
	year := now.Year()
	roll, err := allocateRoll(ctx, svc.st, crs.ID, crs.Name, year)
	if err != nil {
		return Student{}, err
	}

	totalFee := ns.TotalFee
	if totalFee.IsZero() {
		totalFee = crs.Fee // snapshot of the course fee at enrollment time
	}

	paymentDate := ns.PaymentDate
	if paymentDate == "" {
		paymentDate = core.FormatDate(now)
	}

	stu := Student{
		FullName:       ns.FullName,
		FathersName:    ns.FathersName,
		Mobile:         ns.Mobile,
		DOB:            ns.DOB,
		Address:        ns.Address,
		Roll:           roll,
		CourseID:       crs.ID,
		CourseName:     crs.Name,
		EnrollmentYear: year,
		EnrollmentDate: core.NewDate(now),
		TotalFee:       totalFee,
		AmountPaid:     decimal.Zero,
	}
	if ns.Email != "" {
		stu.Email.SetValid(ns.Email)
	}
	if ns.AmountPaid.IsPositive() {
		date, _ := core.ParseDate(paymentDate)
		stu.AmountPaid = ns.AmountPaid
		stu.PaymentHistory = []Payment{{
			Amount:    ns.AmountPaid,
			Mode:      ns.PaymentMode,
			Date:      core.NewDate(date),
			Timestamp: now.UTC(),
		}}
	}

	doc := studentToDoc(stu)
	doc["lastUpdated"] = store.ServerTimestamp()
	id, err := svc.col().Insert(ctx, doc)
	if err != nil {
		return Student{}, errors.Wrap(err, "inserting student")
	}
	stu.ID = id
	stu.LastUpdated = now

	if ns.AmountPaid.IsPositive() {
		_, err = svc.finSvc.RecordLinkedIncome(ctx, finance.NewTransaction{
			Description: fmt.Sprintf("Fee from new enrollment: %s (Roll: %s)", stu.FullName, stu.Roll),
			Amount:      ns.AmountPaid,
			Type:        finance.TypeIncome,
			Category:    finance.CategoryFeeCollection,
			Date:        paymentDate,
			StudentID:   stu.ID,
		})
		if err != nil {
			return stu, core.NewPartialWriteError(err,
				"student record created with the initial payment",
				"income transaction was not recorded; add a Fee Collection entry for the amount manually or retry via reconciliation")
		}
		svc.sendFeeReceipt(stu, stu.PaymentHistory[0])
	}
	return stu, nil
}

// RecordPayment appends an installment to the student's payment history,
// recomputes AmountPaid from the full history and mirrors the payment
// into the ledger. Surfaces a core.PartialWriteError when the student
// write succeeded but the ledger write did not.
func (svc *Service) RecordPayment(ctx context.Context, studentID string, np NewPayment) (Student, error) {
	stu, err := svc.GetByID(ctx, studentID)
	if err != nil {
		return Student{}, err
	}

	date, err := core.ParseDate(np.Date)
	if err != nil {
		return Student{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid calendar date"})
	}

	payment := Payment{
		Amount:    np.Amount,
		Mode:      np.Mode,
		Date:      core.NewDate(date),
		Timestamp: nowFunc().UTC(),
	}
	stu.PaymentHistory = append(stu.PaymentHistory, payment)
	stu.AmountPaid = stu.HistoryTotal()

	err = svc.col().Update(ctx, stu.ID, store.Doc{
		"amountPaid":     stu.AmountPaid.InexactFloat64(),
		"paymentHistory": paymentsToDocs(stu.PaymentHistory),
		"lastUpdated":    store.ServerTimestamp(),
	})
	if err != nil {
		return Student{}, errors.Wrap(err, "updating student")
	}

	_, err = svc.finSvc.RecordLinkedIncome(ctx, finance.NewTransaction{
		Description: fmt.Sprintf("Fee payment: %s (Roll: %s)", stu.FullName, stu.Roll),
		Amount:      np.Amount,
		Type:        finance.TypeIncome,
		Category:    finance.CategoryFeeCollection,
		Date:        np.Date,
		StudentID:   stu.ID,
	})
	if err != nil {
		return stu, core.NewPartialWriteError(err,
			"payment recorded on the student",
			"income transaction was not recorded; add a Fee Collection entry for the amount manually")
	}

	svc.sendFeeReceipt(stu, payment)
	return stu, nil
}

// ReconciliationReport describes the drift between a student's advisory
// AmountPaid cache, the payment history and the linked ledger entries.
type ReconciliationReport struct {
	StudentID    string          `json:"student_id"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	HistoryTotal decimal.Decimal `json:"history_total"`
	LedgerTotal  decimal.Decimal `json:"ledger_total"`
	Adjusted     bool            `json:"adjusted"`
}

// Reconcile restores the AmountPaid invariant from the payment history
// and reports how the linked ledger entries compare. The ledger is
// never rewritten here; a drifted ledger needs a manual correcting
// entry, which the report makes visible.
func (svc *Service) Reconcile(ctx context.Context, studentID string) (ReconciliationReport, error) {
	stu, err := svc.GetByID(ctx, studentID)
	if err != nil {
		return ReconciliationReport{}, err
	}

	report := ReconciliationReport{
		StudentID:    stu.ID,
		AmountPaid:   stu.AmountPaid,
		HistoryTotal: stu.HistoryTotal(),
	}

	txns, err := svc.finSvc.QueryAll(ctx)
	if err != nil {
		return ReconciliationReport{}, errors.Wrap(err, "querying ledger")
	}
	for _, txn := range txns {
		if txn.StudentID == stu.ID && txn.Type == finance.TypeIncome {
			report.LedgerTotal = report.LedgerTotal.Add(txn.Amount)
		}
	}

	if !report.AmountPaid.Equal(report.HistoryTotal) {
		err = svc.col().Update(ctx, stu.ID, store.Doc{
			"amountPaid":  report.HistoryTotal.InexactFloat64(),
			"lastUpdated": store.ServerTimestamp(),
		})
		if err != nil {
			return ReconciliationReport{}, errors.Wrap(err, "restoring amountPaid")
		}
		report.AmountPaid = report.HistoryTotal
		report.Adjusted = true
	}
	return report, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	doc, err := svc.col().Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return Student{}, ErrNotFound
		}
		return Student{}, err
	}
	return docToStudent(doc), nil
}

// QueryAll returns all students ordered by last update, most recent first.
func (svc *Service) QueryAll(ctx context.Context) ([]Student, error) {
	docs, err := svc.col().All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]Student, 0, len(docs))
	for _, doc := range docs {
		students = append(students, docToStudent(doc))
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].LastUpdated.After(students[j].LastUpdated) })
	return students, nil
}

// Filter applies AND semantics on the available QueryFilter fields.
// QueryFilter.Search does a case-insensitive match on name or roll.
func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Student, error) {
	filter.Clean()
	students, err := svc.QueryAll(ctx)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return students, nil
	}
	matched := make([]Student, 0, len(students))
	for _, stu := range students {
		if filter.Matches(stu) {
			matched = append(matched, stu)
		}
	}
	return matched, nil
}

// Update modifies identity fields only. The roll number is immutable
// once assigned and money fields move exclusively through payment
// recording, so none of them are touched here.
func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	if _, err := svc.GetByID(ctx, id); err != nil {
		return Student{}, err
	}

	fields := store.Doc{"lastUpdated": store.ServerTimestamp()}
	if us.FullName != "" {
		fields["fullName"] = us.FullName
	}
	if us.FathersName != "" {
		fields["fathersName"] = us.FathersName
	}
	if us.Mobile != "" {
		fields["mobile"] = us.Mobile
	}
	if us.Email != "" {
		fields["email"] = us.Email
	}
	if us.DOB != "" {
		fields["dob"] = us.DOB
	}
	if us.Address != "" {
		fields["address"] = us.Address
	}

	if err := svc.col().Update(ctx, id, fields); err != nil {
		return Student{}, errors.Wrap(err, "updating student")
	}
	return svc.GetByID(ctx, id)
}

// Delete removes the student record. Linked ledger entries are kept;
// income already received remains income.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.col().Delete(ctx, id); err != nil {
		if errors.Cause(err) == store.ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "deleting student")
	}
	return nil
}

func (svc *Service) Subscribe(fn func([]Student)) store.UnsubscribeFunc {
	return svc.col().Subscribe(func(snap store.Snapshot) {
		students := make([]Student, 0, len(snap))
		for _, doc := range snap {
			students = append(students, docToStudent(doc))
		}
		sort.SliceStable(students, func(i, j int) bool { return students[i].LastUpdated.After(students[j].LastUpdated) })
		fn(students)
	})
}

// sendFeeReceipt emails a fee receipt when the student left an email
// address. Best-effort: the email service logs delivery problems,
// nothing is surfaced to the caller.
func (svc *Service) sendFeeReceipt(stu Student, payment Payment) {
	if svc.mailSvc == nil || !stu.Email.Valid {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: stu.FullName, Address: stu.Email.String}},
		Subject:      "Fee Receipt - " + stu.Roll,
		TemplateName: "fee-receipt",
		TemplateData: struct {
			Student Student
			Payment Payment
		}{stu, payment},
	})
}
