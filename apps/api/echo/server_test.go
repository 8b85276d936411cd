package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	"github.com/shopspring/decimal"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/course"
	"github.com/acadhub/backend/core/enquiry"
	"github.com/acadhub/backend/core/finance"
	"github.com/acadhub/backend/core/sales"
	"github.com/acadhub/backend/core/store"
	"github.com/acadhub/backend/core/student"
	emailsvc "github.com/acadhub/backend/services/email"
	logsvc "github.com/acadhub/backend/services/logger"
	inmemstore "github.com/acadhub/backend/storage/entitystore/inmem"
)

type testDeps struct {
	db         store.Store
	crsSvc     *course.Service
	stuSvc     *student.Service
	finSvc     *finance.Service
	matSvc     *sales.MaterialService
	salesSvc   *sales.Service
	enquirySvc *enquiry.Service
}

func setup(t *testing.T, stores ...store.Store) (Server, testDeps) {
	var st store.Store
	if len(stores) > 0 {
		st = stores[0]
	} else {
		db := inmemstore.Open()
		t.Cleanup(func() { _ = db.Close() })
		st = db
	}

	conf := &core.Config{Env: "TEST", TestMode: true, AppName: "AcadHub"}
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	finSvc := finance.NewService(st)
	crsSvc := course.NewService(st)
	stuSvc := student.NewService(st, crsSvc, finSvc, mailSvc)
	enqSvc := enquiry.NewService(st, crsSvc)
	matSvc := sales.NewMaterialService(st)
	salesSvc := sales.NewService(st, matSvc, finSvc)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)

	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		Validate:       validate,
		Translator:     translator,
		StudentSvc:     stuSvc,
		CourseSvc:      crsSvc,
		EnquirySvc:     enqSvc,
		FinanceSvc:     finSvc,
		SalesSvc:       salesSvc,
		MaterialSvc:    matSvc,
	})
	return app, testDeps{
		db:         st,
		crsSvc:     crsSvc,
		stuSvc:     stuSvc,
		finSvc:     finSvc,
		matSvc:     matSvc,
		salesSvc:   salesSvc,
		enquirySvc: enqSvc,
	}
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body failed: %v; body = %s", err, rec.Body.String())
	}
	return body
}

func createCourse(t *testing.T, deps testDeps, name string, fee int64) course.Course {
	t.Helper()
	crs, err := deps.crsSvc.Create(context.Background(), course.NewCourse{Name: name, Fee: decimal.NewFromInt(fee)})
	if err != nil {
		t.Fatalf("creating course %q failed: %v", name, err)
	}
	return crs
}

func TestHome(t *testing.T) {
	app, _ := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to AcadHub API!", rec.Body.String())
}

func TestStudentCreate(t *testing.T) {
	app, deps := setup(t)
	crs := createCourse(t, deps, "Judiciary", 50000)

	body := marchallObj(t, student.NewStudent{
		FullName:    "Asha Verma",
		FathersName: "R Verma",
		Mobile:      "9876543210",
		DOB:         "2001-06-21",
		Address:     "12 Civil Lines",
		CourseID:    crs.ID,
		AmountPaid:  decimal.NewFromInt(20000),
		PaymentMode: student.ModeCash,
	})
	req, rec := newRequest(http.MethodPost, "/v1/students", body)
	app.ServeHTTP(rec, req)

	if !assert.Equal(t, http.StatusCreated, rec.Code) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	got := decodeBody(t, rec)
	assert.NotEmpty(t, got["id"])
	assert.Equal(t, "Asha Verma", got["full_name"])
	assert.Contains(t, got["roll"], "LLAJ")
	assert.Equal(t, "Judiciary", got["course_name"])
}

func TestStudentCreateValidation(t *testing.T) {
	app, deps := setup(t)
	crs := createCourse(t, deps, "Judiciary", 50000)

	tests := []struct {
		name      string
		body      interface{}
		wantCode  int
		wantField string
	}{
		{
			"bad mobile",
			student.NewStudent{
				FullName: "Asha Verma", FathersName: "R Verma", Mobile: "12345",
				DOB: "2001-06-21", Address: "12 Civil Lines", CourseID: crs.ID,
			},
			http.StatusBadRequest, "mobile",
		},
		{
			"missing name",
			student.NewStudent{
				FathersName: "R Verma", Mobile: "9876543210",
				DOB: "2001-06-21", Address: "12 Civil Lines", CourseID: crs.ID,
			},
			http.StatusBadRequest, "full_name",
		},
		{
			"unknown course",
			student.NewStudent{
				FullName: "Asha Verma", FathersName: "R Verma", Mobile: "9876543210",
				DOB: "2001-06-21", Address: "12 Civil Lines", CourseID: "nope",
			},
			http.StatusBadRequest, "course_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/students", marchallObj(t, tt.body))
			app.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			got := decodeBody(t, rec)
			assert.Contains(t, got, tt.wantField)
		})
	}
}

func TestStudentRetrieveNotFound(t *testing.T) {
	app, _ := setup(t)

	req, rec := newRequest(http.MethodGet, "/v1/students/nope")
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "not found", got["error"])
}

func TestStudentRecordPayment(t *testing.T) {
	app, deps := setup(t)
	ctx := context.Background()
	crs := createCourse(t, deps, "Judiciary", 50000)

	stu, err := deps.stuSvc.Register(ctx, student.NewStudent{
		FullName:    "Asha Verma",
		FathersName: "R Verma",
		Mobile:      "9876543210",
		DOB:         "2001-06-21",
		Address:     "12 Civil Lines",
		CourseID:    crs.ID,
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	body := marchallObj(t, student.NewPayment{
		Amount: decimal.NewFromInt(10000),
		Mode:   student.ModeUPI,
		Date:   "2024-02-01",
	})
	req, rec := newRequest(http.MethodPost, "/v1/students/"+stu.ID+"/payments", body)
	app.ServeHTTP(rec, req)

	if !assert.Equal(t, http.StatusOK, rec.Code) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	got := decodeBody(t, rec)
	assert.Equal(t, "10000", got["amount_paid"])

	txns, err := deps.finSvc.QueryAll(ctx)
	assert.NoError(t, err)
	assert.Len(t, txns, 1)
}

// failingLedgerStore delegates everything except transaction inserts.
type failingLedgerStore struct {
	store.Store
}

func (s failingLedgerStore) Collection(name string) store.Collection {
	if name == store.Transactions {
		return failingCollection{}
	}
	return s.Store.Collection(name)
}

type failingCollection struct {
	store.Collection
}

func (failingCollection) Insert(context.Context, store.Doc) (string, error) {
	return "", assert.AnError
}

func TestStudentCreatePartialWrite(t *testing.T) {
	db := inmemstore.Open()
	t.Cleanup(func() { _ = db.Close() })
	app, deps := setup(t, failingLedgerStore{Store: db})
	crs := createCourse(t, deps, "Judiciary", 50000)

	body := marchallObj(t, student.NewStudent{
		FullName:    "Asha Verma",
		FathersName: "R Verma",
		Mobile:      "9876543210",
		DOB:         "2001-06-21",
		Address:     "12 Civil Lines",
		CourseID:    crs.ID,
		AmountPaid:  decimal.NewFromInt(20000),
		PaymentMode: student.ModeCash,
	})
	req, rec := newRequest(http.MethodPost, "/v1/students", body)
	app.ServeHTTP(rec, req)

	// the student write committed; the response reports the pending half
	assert.Equal(t, http.StatusCreated, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, true, got["partial"])
	assert.NotEmpty(t, got["pending"])
	stu, ok := got["student"].(map[string]interface{})
	if !ok {
		t.Fatalf("student missing from partial response: %s", rec.Body.String())
	}
	assert.NotEmpty(t, stu["id"])
}

func TestCourseMigrateName(t *testing.T) {
	app, deps := setup(t)
	ctx := context.Background()
	crs := createCourse(t, deps, "Judiciary", 50000)

	for _, name := range []string{"Asha Verma", "Ravi Kumar"} {
		if _, err := deps.stuSvc.Register(ctx, student.NewStudent{
			FullName:    name,
			FathersName: "X",
			Mobile:      "9876543210",
			DOB:         "2001-06-21",
			Address:     "12 Civil Lines",
			CourseID:    crs.ID,
		}); err != nil {
			t.Fatalf("Register() failed: %v", err)
		}
	}
	if _, err := deps.crsSvc.Update(ctx, crs.ID, course.UpdateCourse{Name: "Judiciary Gold"}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	req, rec := newRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/migrate-name")
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, float64(2), got["migrated"])
}

func TestSalesFlow(t *testing.T) {
	app, _ := setup(t)

	// add a material with initial stock
	body := marchallObj(t, sales.NewMaterial{
		Name:         "Notes A",
		Price:        decimal.NewFromInt(150),
		InitialStock: 20,
	})
	req, rec := newRequest(http.MethodPost, "/v1/materials", body)
	app.ServeHTTP(rec, req)
	if !assert.Equal(t, http.StatusCreated, rec.Code) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	matID := decodeBody(t, rec)["id"].(string)

	// record a sale
	body = marchallObj(t, sales.NewSale{
		CustomerName: "Ravi Kumar",
		MaterialID:   matID,
		Quantity:     3,
		Medium:       sales.MediumEnglish,
	})
	req, rec = newRequest(http.MethodPost, "/v1/sales", body)
	app.ServeHTTP(rec, req)
	if !assert.Equal(t, http.StatusCreated, rec.Code) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	got := decodeBody(t, rec)
	assert.Equal(t, "450", got["total_price"])

	// revenue reflects the price snapshot
	req, rec = newRequest(http.MethodGet, "/v1/sales/revenue")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "450", decodeBody(t, rec)["revenue"])

	// top up stock from the inventory screen
	req, rec = newRequest(http.MethodPost, "/v1/inventory/"+matID+"/stock", marchallObj(t, sales.AddStock{Delta: 5}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	got = decodeBody(t, rec)
	assert.Equal(t, float64(25), got["total_stock"])
	assert.Equal(t, float64(25), got["available_stock"])
}

func TestAddStockValidation(t *testing.T) {
	app, deps := setup(t)
	mat, err := deps.matSvc.Create(context.Background(), sales.NewMaterial{
		Name:  "Notes A",
		Price: decimal.NewFromInt(150),
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	req, rec := newRequest(http.MethodPost, "/v1/inventory/"+mat.ID+"/stock", marchallObj(t, sales.AddStock{Delta: 0}))
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeBody(t, rec)
	assert.Contains(t, got, "delta")
}

func TestEnquiryCreateAndFilter(t *testing.T) {
	app, deps := setup(t)
	crs := createCourse(t, deps, "Judiciary", 50000)

	body := marchallObj(t, enquiry.NewEnquiry{
		Name:     "Meera Nair",
		Mobile:   "9876543210",
		CourseID: crs.ID,
	})
	req, rec := newRequest(http.MethodPost, "/v1/enquiries", body)
	app.ServeHTTP(rec, req)
	if !assert.Equal(t, http.StatusCreated, rec.Code) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	assert.Equal(t, enquiry.StatusPending, decodeBody(t, rec)["status"])

	req, rec = newRequest(http.MethodGet, "/v1/enquiries?status=Pending")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding list failed: %v", err)
	}
	assert.Len(t, list, 1)
}
