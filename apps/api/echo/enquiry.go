package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadhub/backend/core/enquiry"
)

type enquiryApi struct {
	svc      *enquiry.Service
	validate *validator.Validate
}

func registerEnquiryAPI(g *echo.Group, svc *enquiry.Service, validate *validator.Validate) {
	api := enquiryApi{svc: svc, validate: validate}

	eg := g.Group("/enquiries")
	eg.POST("", api.create)
	eg.GET("", api.query)

	dg := eg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

func (api *enquiryApi) create(ctx echo.Context) error {
	var data enquiry.NewEnquiry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnquiry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enq, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating enquiry")
	}
	return ctx.JSON(http.StatusCreated, enq)
}

func (api *enquiryApi) query(ctx echo.Context) error {
	filter := new(enquiry.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []enquiry.Enquiry{})
	}

	enqs, err := api.svc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying enquiries")
	}
	if enqs == nil {
		enqs = []enquiry.Enquiry{}
	}
	return ctx.JSON(http.StatusOK, enqs)
}

func (api *enquiryApi) retrieve(ctx echo.Context) error {
	enq, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting enquiry")
	}
	return ctx.JSON(http.StatusOK, enq)
}

func (api *enquiryApi) update(ctx echo.Context) error {
	var data enquiry.UpdateEnquiry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEnquiry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enq, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating enquiry")
	}
	return ctx.JSON(http.StatusOK, enq)
}

func (api *enquiryApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting enquiry")
	}
	return ctx.NoContent(http.StatusNoContent)
}
