package provider

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slotbook/scheduler/internal/platform/auth"
	"github.com/slotbook/scheduler/internal/platform/db"
	"github.com/slotbook/scheduler/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleOwner, auth.RoleStaff))
	read.GET("/providers", h.ListProviders)
	read.GET("/providers/:id", h.GetProvider)

	write := api.Group("", auth.RequireRole(auth.RoleOwner))
	write.POST("/providers", h.CreateProvider)
	write.POST("/providers/:id/activate", h.ActivateProvider)
	write.POST("/providers/:id/deactivate", h.DeactivateProvider)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

func scope(c echo.Context) (int64, error) {
	id := db.BusinessFromContext(c.Request().Context())
	if id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "business id is required")
	}
	return id, nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateProvider(c echo.Context) error {
	bid, err := scope(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), bid, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProvider(c echo.Context) error {
	bid, err := scope(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), bid, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProviders(c echo.Context) error {
	bid, err := scope(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c).Normalize()
	activeOnly := c.QueryParam("active") != "false"

	items, total, err := h.svc.List(c.Request().Context(), bid, activeOnly, pg.PageSize, pg.Offset())
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Provider{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ActivateProvider(c echo.Context) error {
	return h.setActive(c, true)
}

func (h *Handler) DeactivateProvider(c echo.Context) error {
	return h.setActive(c, false)
}

func (h *Handler) setActive(c echo.Context, active bool) error {
	bid, err := scope(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.SetActive(c.Request().Context(), bid, id, active); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
