package comment

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
	api.GET("/incidents/:id/comments", h.List)
	api.POST("/incidents/:id/comments", h.Add)
}

func incidentIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation("Invalid incident ID")
	}
	return id, nil
}

type addRequest struct {
	Content string `json:"content"`
}

func (h *Handler) Add(c echo.Context) error {
	id, err := incidentIDParam(c)
	if err != nil {
		return err
	}
	var req addRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	ctx := c.Request().Context()
	cm, err := h.svc.Add(ctx, auth.PrincipalFromContext(ctx), id, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"message": "Comment added successfully",
		"comment": cm,
	})
}

func (h *Handler) List(c echo.Context) error {
	id, err := incidentIDParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	items, err := h.svc.List(ctx, auth.PrincipalFromContext(ctx), id)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Comment{}
	}
	return c.JSON(http.StatusOK, items)
}
