package privacy

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
	"github.com/stephennewman/contextmemo-sub002/internal/server"
)

type Handler struct {
	service  *Service
	sessions *auth.Store
}

func NewHandler(service *Service, sessions *auth.Store) *Handler {
	return &Handler{service: service, sessions: sessions}
}

func (h *Handler) Register(api *echo.Group, _ *echo.Group) {
	api.POST("/orgs/:id/privacy/export", h.export)
	api.POST("/orgs/:id/privacy/delete", h.delete)
}

func (h *Handler) export(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	orgID := c.Param("id")

	if err := h.sessions.RequireOrgRole(ctx, sess.UserID, orgID, models.RoleOwner); err != nil {
		return err
	}
	doc, err := h.service.Export(ctx, orgID, sess.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	orgID := c.Param("id")

	if err := h.sessions.RequireOrgRole(ctx, sess.UserID, orgID, models.RoleOwner); err != nil {
		return err
	}
	result, err := h.service.Delete(ctx, orgID, sess.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
