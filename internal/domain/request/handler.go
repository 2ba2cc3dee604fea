package request

import (
	"net/http"

	"github.com/google/uuid"
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
	api.GET("/emergency-requests", h.List)
	api.GET("/emergency-requests/:id", h.Get)
	api.POST("/emergency-requests", h.Create)

	// Approvals and deletions are a supervisory action.
	decide := api.Group("", auth.RequireRole(user.RoleManager, user.RoleHospitalAdmin))
	decide.PUT("/emergency-requests/:id", h.Update)
	decide.DELETE("/emergency-requests/:id", h.Delete)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, httpx.Validation("invalid request id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return httpx.Validation("invalid request body")
	}
	req, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusCreated, "emergency request created", map[string]interface{}{"request": req})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	req, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "", map[string]interface{}{"request": req})
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	requests, total, err := h.svc.List(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return httpx.OKCount(c, total, "requests", requests)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return httpx.Validation("invalid request body")
	}
	req, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "emergency request updated", map[string]interface{}{"request": req})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "emergency request deleted", nil)
}
