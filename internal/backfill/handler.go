package backfill

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
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
	api.POST("/brands/:id/queries/backfill", h.backfill)
}

func (h *Handler) backfill(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	result, err := h.service.Run(ctx, brandID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
