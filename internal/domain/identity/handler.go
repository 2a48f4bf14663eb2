package identity

import (
	"net/http"
	"strconv"

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
	// Public; exempted from authentication by auth.AuthSkipper.
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/user", h.Me)

	admin := api.Group("", auth.RequireAdmin())
	admin.GET("/users", h.ListUsers)
	admin.GET("/users/:id", h.GetUser)
	admin.PATCH("/users/:id", h.UpdateUser)
	admin.DELETE("/users/:id", h.DeleteUser)
	admin.GET("/admin/registrations", h.ListRegistrations)
	admin.POST("/admin/registrations/:id/approve", h.ApproveRegistration)
	admin.POST("/admin/registrations/:id/reject", h.RejectRegistration)
}

func principal(c echo.Context) *auth.Principal {
	return auth.PrincipalFromContext(c.Request().Context())
}

func userIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("Invalid user ID")
	}
	return id, nil
}

func registrationIDParam(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		return 0, apperr.Validation("Invalid registration ID")
	}
	return id, nil
}

// -- Auth Handlers --

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body")
	}
	reg, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success":        true,
		"message":        "Registration request submitted successfully. Please wait for admin approval.",
		"registrationId": reg.ID,
	})
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body")
	}
	sess, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"token":     sess.Token,
		"expiresAt": sess.ExpiresAt,
		"user":      sess.User,
	})
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context(), principal(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) Me(c echo.Context) error {
	u, err := h.svc.Me(c.Request().Context(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// -- User Handlers --

func (h *Handler) ListUsers(c echo.Context) error {
	p := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), principal(c), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, p))
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}
	var in UpdateUserInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body")
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), principal(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// -- Registration Handlers --

func (h *Handler) ListRegistrations(c echo.Context) error {
	regs, err := h.svc.ListRegistrations(c.Request().Context(), principal(c), c.QueryParam("status"))
	if err != nil {
		return err
	}
	if regs == nil {
		regs = []*Registration{}
	}
	return c.JSON(http.StatusOK, regs)
}

func (h *Handler) ApproveRegistration(c echo.Context) error {
	id, err := registrationIDParam(c)
	if err != nil {
		return err
	}
	u, err := h.svc.ApproveRegistration(c.Request().Context(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Registration approved and user account created",
		"user":    u,
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectRegistration(c echo.Context) error {
	id, err := registrationIDParam(c)
	if err != nil {
		return err
	}
	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	reg, err := h.svc.RejectRegistration(c.Request().Context(), principal(c), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Registration rejected",
		"registration": reg,
	})
}
