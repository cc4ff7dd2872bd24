package persona

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
	api.GET("/brands/:id/personas", h.list)
	api.POST("/brands/:id/personas", h.create)
	api.PUT("/brands/:id/personas/:personaID", h.update)
	api.DELETE("/brands/:id/personas/:personaID", h.delete)
}

func (h *Handler) list(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}
	personas, err := h.service.List(ctx, brandID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"personas": personas})
}

func (h *Handler) create(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	var input personaInput
	if err := c.Bind(&input); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	p, err := h.service.Create(ctx, brandID, &input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	var input personaInput
	if err := c.Bind(&input); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	p, err := h.service.Update(ctx, brandID, c.Param("personaID"), &input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}
	if err := h.service.Delete(ctx, brandID, c.Param("personaID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
