package user

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bedtrack/bedtrack/internal/platform/httpx"
	"github.com/bedtrack/bedtrack/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/users", h.List)
	api.GET("/users/:id", h.Get)
}

// List requires a role filter; an unscoped user dump is never needed by the
// dashboard and would leak the whole directory.
func (h *Handler) List(c echo.Context) error {
	role := c.QueryParam("role")
	if role == "" {
		return httpx.Validation("role query parameter is required")
	}
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListByRole(c.Request().Context(), role, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return httpx.OKCount(c, total, "users", users)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Validation("invalid user id")
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "", map[string]interface{}{"user": u})
}
