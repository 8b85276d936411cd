package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/student"
)

type studentApi struct {
	svc      *student.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, svc *student.Service, validate *validator.Validate) {
	api := studentApi{svc: svc, validate: validate}

	sg := g.Group("/students")
	sg.POST("", api.create)
	sg.GET("", api.query)

	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/payments", api.recordPayment)
	dg.POST("/reconcile", api.reconcile)
}

// partialStudentResponse is returned when the student write committed
// but the linked ledger write did not.
type partialStudentResponse struct {
	Partial bool            `json:"partial"`
	Done    string          `json:"done"`
	Pending string          `json:"pending"`
	Student student.Student `json:"student"`
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stu, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		var pwErr *core.PartialWriteError
		if errors.As(err, &pwErr) {
			return ctx.JSON(http.StatusCreated, partialStudentResponse{
				Partial: true,
				Done:    pwErr.Done,
				Pending: pwErr.Pending,
				Student: stu,
			})
		}
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, stu)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()

	students, err := api.svc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	stu, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stu, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) recordPayment(ctx echo.Context) error {
	var data student.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stu, err := api.svc.RecordPayment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		var pwErr *core.PartialWriteError
		if errors.As(err, &pwErr) {
			return ctx.JSON(http.StatusOK, partialStudentResponse{
				Partial: true,
				Done:    pwErr.Done,
				Pending: pwErr.Pending,
				Student: stu,
			})
		}
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *studentApi) reconcile(ctx echo.Context) error {
	report, err := api.svc.Reconcile(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "reconciling student")
	}
	return ctx.JSON(http.StatusOK, report)
}
