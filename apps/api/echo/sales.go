package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/sales"
)

type salesApi struct {
	svc      *sales.Service
	matSvc   *sales.MaterialService
	validate *validator.Validate
}

func registerSalesAPI(g *echo.Group, svc *sales.Service, matSvc *sales.MaterialService, validate *validator.Validate) {
	api := salesApi{svc: svc, matSvc: matSvc, validate: validate}

	sg := g.Group("/sales")
	sg.POST("", api.createSale)
	sg.GET("", api.querySales)
	sg.GET("/revenue", api.totalRevenue)

	sdg := sg.Group("/:id")
	sdg.GET("", api.retrieveSale)
	sdg.PUT("", api.updateSale)
	sdg.DELETE("", api.destroySale)

	mg := g.Group("/materials")
	mg.POST("", api.createMaterial)
	mg.GET("", api.queryMaterials)

	mdg := mg.Group("/:id")
	mdg.GET("", api.retrieveMaterial)
	mdg.PUT("", api.updateMaterial)
	mdg.DELETE("", api.destroyMaterial)

	ig := g.Group("/inventory")
	ig.GET("", api.queryInventory)
	ig.POST("/:id/stock", api.addStock)
}

// Sales

type partialSaleResponse struct {
	Partial bool       `json:"partial"`
	Done    string     `json:"done"`
	Pending string     `json:"pending"`
	Sale    sales.Sale `json:"sale"`
}

func (api *salesApi) createSale(ctx echo.Context) error {
	var data sales.NewSale
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSale")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sale, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		var pwErr *core.PartialWriteError
		if errors.As(err, &pwErr) {
			return ctx.JSON(http.StatusCreated, partialSaleResponse{
				Partial: true,
				Done:    pwErr.Done,
				Pending: pwErr.Pending,
				Sale:    sale,
			})
		}
		return errors.Wrap(err, "creating sale")
	}
	return ctx.JSON(http.StatusCreated, sale)
}

func (api *salesApi) querySales(ctx echo.Context) error {
	sls, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying sales")
	}
	if sls == nil {
		sls = []sales.Sale{}
	}
	return ctx.JSON(http.StatusOK, sls)
}

func (api *salesApi) totalRevenue(ctx echo.Context) error {
	revenue, err := api.svc.TotalRevenue(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing sales revenue")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"revenue": revenue})
}

func (api *salesApi) retrieveSale(ctx echo.Context) error {
	sale, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting sale")
	}
	return ctx.JSON(http.StatusOK, sale)
}

func (api *salesApi) updateSale(ctx echo.Context) error {
	var data sales.UpdateSale
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSale")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sale, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating sale")
	}
	return ctx.JSON(http.StatusOK, sale)
}

func (api *salesApi) destroySale(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting sale")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Materials

func (api *salesApi) createMaterial(ctx echo.Context) error {
	var data sales.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mat, err := api.matSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating material")
	}
	return ctx.JSON(http.StatusCreated, mat)
}

func (api *salesApi) queryMaterials(ctx echo.Context) error {
	mats, err := api.matSvc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	if mats == nil {
		mats = []sales.StudyMaterial{}
	}
	return ctx.JSON(http.StatusOK, mats)
}

func (api *salesApi) retrieveMaterial(ctx echo.Context) error {
	mat, err := api.matSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting material")
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *salesApi) updateMaterial(ctx echo.Context) error {
	var data sales.UpdateMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mat, err := api.matSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating material")
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *salesApi) destroyMaterial(ctx echo.Context) error {
	if err := api.matSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Inventory

func (api *salesApi) queryInventory(ctx echo.Context) error {
	items, err := api.matSvc.QueryInventory(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying inventory")
	}
	if items == nil {
		items = []sales.InventoryItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *salesApi) addStock(ctx echo.Context) error {
	var data sales.AddStock
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddStock")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	item, err := api.matSvc.AddStock(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if isNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "adding stock")
	}
	return ctx.JSON(http.StatusOK, item)
}
