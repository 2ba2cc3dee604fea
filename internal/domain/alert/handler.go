package alert

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
	api.GET("/alerts", h.List)
	api.PATCH("/alerts/:id/dismiss", h.Dismiss)
}

func (h *Handler) List(c echo.Context) error {
	role, _ := c.Get("user_role").(string)
	pg := pagination.FromContext(c)
	alerts, total, err := h.svc.ListForRole(c.Request().Context(), role, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return httpx.OKCount(c, total, "alerts", alerts)
}

func (h *Handler) Dismiss(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Validation("invalid alert id")
	}
	if err := h.svc.Dismiss(c.Request().Context(), id); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "alert dismissed", nil)
}
