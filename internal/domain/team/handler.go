package team

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/auth"
	"github.com/medagenda/medagenda/internal/platform/guard"
)

type Handler struct {
	svc   *Service
	guard *guard.Guard
}

// NewHandler wires the team endpoints. g may be nil to disable attempt
// limiting on join.
func NewHandler(svc *Service, g *guard.Guard) *Handler {
	return &Handler{svc: svc, guard: g}
}

// RegisterRoutes mounts the team endpoints on a group that already
// authenticates the caller.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	// Management: doctors and admins
	manage := g.Group("", auth.RequireRole(auth.RoleDoctor))
	manage.GET("", h.List)
	manage.POST("/join-codes", h.CreateJoinCode)
	manage.DELETE("/join-codes/:id", h.RevokeJoinCode)
	manage.PATCH("/join-codes/:id/revoke", h.RevokeJoinCode)
	manage.POST("/invites", h.CreateInvite)
	manage.DELETE("/invites/:code", h.RevokeInvite)
	manage.DELETE("/members/:userId", h.RemoveMember)

	// Any authenticated user may redeem a code
	g.POST("/join", h.Join)
}

func (h *Handler) List(c echo.Context) error {
	snap, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) CreateJoinCode(c echo.Context) error {
	var req CreateCodeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.Validation, "invalid request body")
	}
	code, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, code)
}

func (h *Handler) CreateInvite(c echo.Context) error {
	var req CreateInviteRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.Validation, "invalid request body")
	}
	invite, err := h.svc.CreateInvite(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invite)
}

func (h *Handler) RevokeJoinCode(c echo.Context) error {
	if err := h.svc.Revoke(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RevokeInvite(c echo.Context) error {
	if err := h.svc.Revoke(c.Request().Context(), c.Param("code")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemoveMember(c echo.Context) error {
	if err := h.svc.RemoveMember(c.Request().Context(), c.Param("userId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Join(c echo.Context) error {
	ctx := c.Request().Context()
	id := auth.IdentityFromContext(ctx)

	var req JoinRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.Validation, "invalid request body")
	}

	attempt, err := h.guard.Reserve(ctx, guard.ClientKey(c.RealIP(), id.UserID))
	if err != nil {
		return err
	}
	res, err := h.svc.Join(ctx, req, Identity{Name: id.Name, Email: id.Email})
	switch {
	case err == nil:
		attempt.Succeed(ctx)
	case apperr.Is(err, apperr.Validation):
		attempt.Fail(ctx)
	default:
		attempt.Release(ctx)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
