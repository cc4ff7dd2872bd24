package pitchdeck

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
)

const accessTokenHeader = "X-Pitch-Access-Token"

type requestCodeRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type viewRequest struct {
	Slug    string `json:"slug"`
	Section string `json:"section"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register puts the whole funnel on the public group: visitors have no
// session.
func (h *Handler) Register(_ *echo.Group, public *echo.Group) {
	public.POST("/api/pitch/request-code", h.requestCode)
	public.POST("/api/pitch/verify", h.verify)
	public.POST("/api/pitch/view", h.view)
}

func (h *Handler) requestCode(c echo.Context) error {
	var req requestCodeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	if err := h.service.RequestCode(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	token, err := h.service.Verify(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"accessToken": token})
}

func (h *Handler) view(c echo.Context) error {
	token := strings.TrimSpace(c.Request().Header.Get(accessTokenHeader))
	if token == "" {
		return apperrors.NewUnauthorizedError("missing access token")
	}

	var req viewRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	if err := h.service.LogView(c.Request().Context(), token, req.Slug, req.Section); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
