package searchconsole

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/server"
)

type connectRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

type pullRequest struct {
	Provider string `json:"provider"`
}

type Handler struct {
	service  *Service
	sessions *auth.Store
}

func NewHandler(service *Service, sessions *auth.Store) *Handler {
	return &Handler{service: service, sessions: sessions}
}

func (h *Handler) Register(api *echo.Group, _ *echo.Group) {
	api.POST("/brands/:id/integrations/searchconsole/connect", h.connect)
	api.POST("/brands/:id/integrations/searchconsole/pull", h.pull)
	api.GET("/brands/:id/integrations/searchconsole/stats", h.stats)
}

func (h *Handler) connect(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	if err := h.service.Connect(ctx, brandID, req.Provider, req.Code); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) pull(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	var req pullRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	result, err := h.service.Pull(ctx, brandID, req.Provider)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) stats(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apperrors.NewValidationError("limit must be a non-negative integer")
		}
		limit = n
	}

	stats, err := h.service.Stats(ctx, brandID, c.QueryParam("provider"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"stats": stats})
}
