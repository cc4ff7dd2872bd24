package brand

import (
	"net/http"
	"strings"

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
	api.GET("/brands", h.list)
	api.GET("/brands/:id", h.get)
	api.PATCH("/brands/:id", h.update)
	api.PATCH("/brands/:id/context", h.updateContext)
}

func (h *Handler) list(c echo.Context) error {
	sess := server.CurrentSession(c)
	brands, err := h.service.ListForUser(c.Request().Context(), sess.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"brands": brands})
}

func (h *Handler) get(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}
	b, err := h.service.Get(ctx, brandID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	var req updateBrandRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	b, err := h.service.Update(ctx, brandID, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) updateContext(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	var req updateContextRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	if strings.TrimSpace(req.Section) == "" {
		return apperrors.NewValidationError("section is required")
	}
	b, err := h.service.ReplaceContextSection(ctx, brandID, req.Section, req.Value)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}
