package github

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/server"
)

type webhookRequest struct {
	RepoOwner string `json:"repoOwner"`
	RepoName  string `json:"repoName"`
}

// webhookResponse never exposes the secret.
type webhookResponse struct {
	RepoOwner string `json:"repoOwner"`
	RepoName  string `json:"repoName"`
	HookID    int64  `json:"hookId"`
}

type Handler struct {
	service  *Service
	sessions *auth.Store
}

func NewHandler(service *Service, sessions *auth.Store) *Handler {
	return &Handler{service: service, sessions: sessions}
}

func (h *Handler) Register(api *echo.Group, _ *echo.Group) {
	api.POST("/brands/:id/integrations/github/webhook", h.ensureWebhook)
	api.POST("/brands/:id/integrations/github/rotate", h.rotateSecret)
}

func (h *Handler) ensureWebhook(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	var req webhookRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	cfg, err := h.service.EnsureWebhook(ctx, brandID, req.RepoOwner, req.RepoName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, webhookResponse{
		RepoOwner: cfg.RepoOwner,
		RepoName:  cfg.RepoName,
		HookID:    cfg.HookID,
	})
}

func (h *Handler) rotateSecret(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}
	cfg, err := h.service.RotateSecret(ctx, brandID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, webhookResponse{
		RepoOwner: cfg.RepoOwner,
		RepoName:  cfg.RepoName,
		HookID:    cfg.HookID,
	})
}
