package incident

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/r3hc/ovr/internal/platform/apperr"
	"github.com/r3hc/ovr/internal/platform/auth"
	"github.com/r3hc/ovr/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public; exempted from authentication by auth.AuthSkipper.
	api.POST("/incidents/public", h.SubmitPublic)

	api.POST("/incidents", h.Submit)
	api.GET("/incidents", h.List)
	api.GET("/incidents/metrics", h.Metrics)
	api.GET("/incidents/ovr/:ovrId", h.GetByOVRID)
	api.GET("/incidents/:id", h.Get)
	api.PATCH("/incidents/:id", h.Update)
	api.DELETE("/incidents/:id", h.Delete)
	api.PATCH("/incidents/:id/edit", h.EditField)
	api.POST("/incidents/:id/proof", h.RecordProof)
	api.POST("/incidents/:id/request-closure", h.RequestClosure)
	api.POST("/incidents/:id/approve-closure", h.ApproveClosure)
	api.POST("/incidents/:id/reject-closure", h.RejectClosure)
}

func principal(c echo.Context) *auth.Principal {
	return auth.PrincipalFromContext(c.Request().Context())
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation("Invalid incident ID")
	}
	return id, nil
}

func (h *Handler) SubmitPublic(c echo.Context) error {
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body")
	}
	inc, err := h.svc.Submit(c.Request().Context(), nil, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"ovrId":   inc.OVRID,
		"message": "Incident reported successfully",
	})
}

func (h *Handler) Submit(c echo.Context) error {
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body")
	}
	p := principal(c)
	if p == nil {
		return apperr.Unauthorized("authentication required")
	}
	inc, err := h.svc.Submit(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success":  true,
		"ovrId":    inc.OVRID,
		"message":  "Incident reported successfully",
		"incident": inc,
	})
}

func optionalInt(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" || raw == "all" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperr.Validation("Invalid %s", name)
	}
	return &v, nil
}

func (h *Handler) List(c echo.Context) error {
	f := Filter{
		Status:   c.QueryParam("status"),
		DateFrom: c.QueryParam("dateFrom"),
		DateTo:   c.QueryParam("dateTo"),
	}
	var err error
	if f.FacilityID, err = optionalInt(c, "facilityId"); err != nil {
		return err
	}
	if f.CategoryID, err = optionalInt(c, "categoryId"); err != nil {
		return err
	}
	if raw := c.QueryParam("flagged"); raw != "" {
		flagged, err := strconv.ParseBool(raw)
		if err != nil {
			return apperr.Validation("Invalid flagged")
		}
		f.Flagged = &flagged
	}

	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), principal(c), f, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) Metrics(c echo.Context) error {
	m, err := h.svc.Metrics(c.Request().Context(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) GetByOVRID(c echo.Context) error {
	inc, err := h.svc.GetByOVRID(c.Request().Context(), principal(c), c.Param("ovrId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inc)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	inc, err := h.svc.Get(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inc)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body")
	}
	inc, err := h.svc.Update(c.Request().Context(), principal(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inc)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Incident deleted successfully",
	})
}

type editRequest struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Comment string `json:"comment"`
}

func (h *Handler) EditField(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req editRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	inc, err := h.svc.EditField(c.Request().Context(), principal(c), id, req.Field, req.Value, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"message":  FieldLabel(req.Field) + " updated successfully",
		"incident": inc,
	})
}

func (h *Handler) RecordProof(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.RecordProof(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Proof uploaded successfully",
	})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RequestClosure(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	inc, err := h.svc.RequestClosure(c.Request().Context(), principal(c), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Closure request submitted for admin approval",
		"incident": inc,
	})
}

func (h *Handler) ApproveClosure(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	inc, err := h.svc.ApproveClosure(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Incident closure approved",
		"incident": inc,
	})
}

func (h *Handler) RejectClosure(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	inc, err := h.svc.RejectClosure(c.Request().Context(), principal(c), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Incident closure rejected",
		"incident": inc,
	})
}
