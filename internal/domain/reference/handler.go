package reference

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/facilities", h.ListFacilities)
	api.GET("/categories", h.ListCategories)

	admin := api.Group("", auth.RequireAdmin())
	admin.PATCH("/facilities/:id", h.UpdateFacility)
}

func (h *Handler) ListFacilities(c echo.Context) error {
	items, err := h.svc.ListFacilities(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Facility{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListCategories(c echo.Context) error {
	items, err := h.svc.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Category{}
	}
	return c.JSON(http.StatusOK, items)
}

type updateFacilityRequest struct {
	IsActive *bool `json:"isActive"`
}

func (h *Handler) UpdateFacility(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apperr.Validation("Invalid facility ID")
	}
	var req updateFacilityRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if req.IsActive == nil {
		return apperr.Validation("isActive is required")
	}
	ctx := c.Request().Context()
	f, err := h.svc.SetFacilityActive(ctx, auth.PrincipalFromContext(ctx), id, *req.IsActive)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}
