package appointment

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/guard"
)

type Handler struct {
	svc   *Service
	guard *guard.Guard
}

func NewHandler(svc *Service, g *guard.Guard) *Handler {
	return &Handler{svc: svc, guard: g}
}

// RegisterRoutes mounts the public check-in endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments/:id/check-in", h.GetCheckIn)
	api.POST("/appointments/:id/confirm-presence", h.ConfirmPresence)
}

func (h *Handler) GetCheckIn(c echo.Context) error {
	summary, err := h.svc.GetCheckIn(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) ConfirmPresence(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.Validation, "invalid request body")
	}

	attempt, err := h.guard.Reserve(ctx, guard.ClientKey(c.RealIP(), id))
	if err != nil {
		return err
	}
	a, err := h.svc.ConfirmPresence(ctx, id, req)
	switch {
	case err == nil:
		attempt.Succeed(ctx)
	case apperr.Is(err, apperr.Mismatch):
		attempt.Fail(ctx)
	default:
		attempt.Release(ctx)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}
