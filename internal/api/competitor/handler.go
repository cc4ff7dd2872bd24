package competitor

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
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
	api.GET("/brands/:id/competitors", h.list)
	api.POST("/brands/:id/competitors", h.create)
	api.DELETE("/brands/:id/competitors/:competitorID", h.delete)
	api.POST("/brands/:id/competitors/revalidate", h.revalidate)
}

func (h *Handler) list(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}
	competitors, err := h.service.List(ctx, brandID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"competitors": competitors})
}

func (h *Handler) create(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	var req createRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	competitor, created, err := h.service.Create(ctx, brandID, &req)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, competitor)
}

func (h *Handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}
	if err := h.service.Delete(ctx, brandID, c.Param("competitorID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) revalidate(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}
	result, err := h.service.Revalidate(ctx, brandID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
