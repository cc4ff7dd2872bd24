package positioning

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/server"
)

type updateRequest struct {
	Section string          `json:"section"`
	Value   json.RawMessage `json:"value"`
}

type response struct {
	Positioning map[string]interface{} `json:"positioning"`
	FilledScore int                    `json:"filledScore"`
}

type Handler struct {
	service  *Service
	sessions *auth.Store
}

func NewHandler(service *Service, sessions *auth.Store) *Handler {
	return &Handler{service: service, sessions: sessions}
}

func (h *Handler) Register(api *echo.Group, _ *echo.Group) {
	api.GET("/brands/:id/positioning", h.get)
	api.PATCH("/brands/:id/positioning", h.update)
}

func (h *Handler) get(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}
	positioning, score, err := h.service.Get(ctx, brandID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, response{Positioning: positioning, FilledScore: score})
}

func (h *Handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}

	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	if strings.TrimSpace(req.Section) == "" {
		return apperrors.NewValidationError("section is required")
	}

	positioning, score, err := h.service.UpdateSection(ctx, brandID, req.Section, req.Value)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, response{Positioning: positioning, FilledScore: score})
}
