package hubspot

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/server"
)

type connectRequest struct {
	Code string `json:"code"`
}

type syncRequest struct {
	MemoID string `json:"memoId"`
}

type Handler struct {
	service  *Service
	sessions *auth.Store
}

func NewHandler(service *Service, sessions *auth.Store) *Handler {
	return &Handler{service: service, sessions: sessions}
}

func (h *Handler) Register(api *echo.Group, _ *echo.Group) {
	api.POST("/brands/:id/integrations/hubspot/connect", h.connect)
	api.GET("/brands/:id/integrations/hubspot/posts", h.listPosts)
	api.POST("/brands/:id/integrations/hubspot/sync", h.sync)
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
	if err := h.service.Connect(ctx, brandID, req.Code); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listPosts(c echo.Context) error {
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

	posts, err := h.service.ListPosts(ctx, brandID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"posts": posts})
}

func (h *Handler) sync(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	if req.MemoID == "" {
		return apperrors.NewValidationError("memoId is required")
	}

	result, err := h.service.SyncMemo(ctx, brandID, req.MemoID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
