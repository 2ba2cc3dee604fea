package bed

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bedtrack/bedtrack/internal/domain/user"
	"github.com/bedtrack/bedtrack/internal/platform/auth"
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
	api.GET("/beds", h.ListBeds)
	api.GET("/beds/:id", h.GetBed)
	api.GET("/beds/:id/occupancy-logs", h.ListBedLogs)
	api.GET("/occupancy-logs", h.ListLogs)
	api.PATCH("/beds/:id/status", h.UpdateStatus)

	adminGroup := api.Group("", auth.RequireRole(user.RoleManager, user.RoleHospitalAdmin))
	adminGroup.POST("/beds", h.CreateBed)
}

func (h *Handler) ListBeds(c echo.Context) error {
	f := Filter{
		Status: c.QueryParam("status"),
		Ward:   c.QueryParam("ward"),
	}
	beds, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return httpx.OKCount(c, len(beds), "beds", beds)
}

func (h *Handler) GetBed(c echo.Context) error {
	b, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "", map[string]interface{}{"bed": b})
}

func (h *Handler) CreateBed(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return httpx.Validation("invalid request body")
	}
	b, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusCreated, "bed created", map[string]interface{}{"bed": b})
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var in UpdateStatusInput
	if err := c.Bind(&in); err != nil {
		return httpx.Validation("invalid request body")
	}
	b, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "bed status updated", map[string]interface{}{"bed": b})
}

func (h *Handler) ListBedLogs(c echo.Context) error {
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.ListLogsForBed(c.Request().Context(), c.Param("id"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return httpx.OKCount(c, total, "logs", entries)
}

func (h *Handler) ListLogs(c echo.Context) error {
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.ListLogs(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return httpx.OKCount(c, total, "logs", entries)
}
