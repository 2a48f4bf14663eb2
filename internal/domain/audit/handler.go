package audit

import (
	"net/http"
	"time"

	"github.com/google/uuid"
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
	admin := api.Group("", auth.RequireAdmin())
	admin.GET("/audit-logs", h.List)
}

func (h *Handler) List(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	ctx := c.Request().Context()
	logs, total, err := h.svc.List(ctx, auth.PrincipalFromContext(ctx), f, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(logs, total, p))
}

func filterFromQuery(c echo.Context) (Filter, error) {
	f := Filter{
		ResourceType: c.QueryParam("resourceType"),
		ResourceID:   c.QueryParam("resourceId"),
		Action:       c.QueryParam("action"),
	}

	// targetUserId is the older name for userId.
	userID := c.QueryParam("userId")
	if userID == "" {
		userID = c.QueryParam("targetUserId")
	}
	if userID != "" {
		id, err := uuid.Parse(userID)
		if err != nil {
			return f, apperr.Validation("invalid userId")
		}
		f.UserID = &id
	}

	var err error
	if f.From, err = parseTime(c.QueryParam("from"), false); err != nil {
		return f, apperr.Validation("invalid from: %s", err)
	}
	if f.To, err = parseTime(c.QueryParam("to"), true); err != nil {
		return f, apperr.Validation("invalid to: %s", err)
	}
	return f, nil
}

// parseTime accepts RFC 3339 or a bare date. A bare upper bound covers the
// whole day.
func parseTime(s string, upper bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}
