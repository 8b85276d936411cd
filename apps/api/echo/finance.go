package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/acadhub/backend/core/enquiry"
	"github.com/acadhub/backend/core/finance"
	"github.com/acadhub/backend/core/student"
)

type financeApi struct {
	svc      *finance.Service
	stuSvc   *student.Service
	enqSvc   *enquiry.Service
	validate *validator.Validate
}

func registerFinanceAPI(
	g *echo.Group,
	svc *finance.Service,
	stuSvc *student.Service,
	enqSvc *enquiry.Service,
	validate *validator.Validate,
) {
	api := financeApi{svc: svc, stuSvc: stuSvc, enqSvc: enqSvc, validate: validate}

	tg := g.Group("/transactions")
	tg.POST("", api.create)
	tg.GET("", api.query)

	rg := tg.Group("/reports")
	rg.GET("/totals", api.totals)
	rg.GET("/timeseries", api.timeSeries)
	rg.GET("/stats", api.stats)

	dg := tg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

func (api *financeApi) create(ctx echo.Context) error {
	var data finance.NewTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTransaction")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	txn, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating transaction")
	}
	return ctx.JSON(http.StatusCreated, txn)
}

func (api *financeApi) query(ctx echo.Context) error {
	txns, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	if txns == nil {
		txns = []finance.Transaction{}
	}
	return ctx.JSON(http.StatusOK, txns)
}

func (api *financeApi) retrieve(ctx echo.Context) error {
	txn, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting transaction")
	}
	return ctx.JSON(http.StatusOK, txn)
}

func (api *financeApi) update(ctx echo.Context) error {
	var data finance.UpdateTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTransaction")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	txn, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating transaction")
	}
	return ctx.JSON(http.StatusOK, txn)
}

func (api *financeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting transaction")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Reports

func (api *financeApi) totals(ctx echo.Context) error {
	txns, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	return ctx.JSON(http.StatusOK, finance.ComputeTotals(txns))
}

func (api *financeApi) timeSeries(ctx echo.Context) error {
	txns, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	window := ctx.QueryParam("window")
	return ctx.JSON(http.StatusOK, finance.TimeSeries(txns, window, time.Now()))
}

type statsResponse struct {
	TotalStudents      int             `json:"total_students"`
	NewStudentsMonth   int             `json:"new_students_this_month"`
	PendingEnquiries   int             `json:"pending_enquiries"`
	MonthIncome        decimal.Decimal `json:"month_income"`
	MonthExpenses      decimal.Decimal `json:"month_expenses"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}

// stats aggregates the dashboard counters in one call.
func (api *financeApi) stats(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	students, err := api.stuSvc.QueryAll(rctx)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	pending, err := api.enqSvc.PendingCount(rctx)
	if err != nil {
		return errors.Wrap(err, "counting pending enquiries")
	}
	txns, err := api.svc.QueryAll(rctx)
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}

	monthStart := finance.StartOfMonth(time.Now())

	enrollments := make([]time.Time, 0, len(students))
	outstanding := decimal.Zero
	for _, stu := range students {
		enrollments = append(enrollments, stu.EnrollmentDate.Time)
		outstanding = outstanding.Add(stu.Due())
	}

	var monthTxns []finance.Transaction
	for _, txn := range txns {
		if !txn.Date.Before(monthStart) {
			monthTxns = append(monthTxns, txn)
		}
	}
	monthTotals := finance.ComputeTotals(monthTxns)

	return ctx.JSON(http.StatusOK, statsResponse{
		TotalStudents:      len(students),
		NewStudentsMonth:   finance.CountOnOrAfter(enrollments, monthStart),
		PendingEnquiries:   pending,
		MonthIncome:        monthTotals.Income,
		MonthExpenses:      monthTotals.Expenses,
		OutstandingBalance: outstanding,
	})
}
