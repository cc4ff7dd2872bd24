package memo

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/server"
)

type viewRequest struct {
	Referrer string `json:"referrer"`
}

type Handler struct {
	service  *Service
	sessions *auth.Store
}

func NewHandler(service *Service, sessions *auth.Store) *Handler {
	return &Handler{service: service, sessions: sessions}
}

func (h *Handler) Register(api *echo.Group, public *echo.Group) {
	api.GET("/brands/:id/memos", h.list)
	api.GET("/brands/:id/memos/search", h.search)
	api.GET("/memos/:id", h.get)
	api.POST("/memos/:id/publish", h.publish)
	// view logging is called from the public memo page, no session required
	public.POST("/api/memos/:id/view", h.logView)
}

func (h *Handler) list(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	brandID := c.Param("id")

	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, brandID); err != nil {
		return err
	}
	memos, err := h.service.ListForBrand(ctx, brandID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"memos": memos})
}

func (h *Handler) search(c echo.Context) error {
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

	hits, err := h.service.Search(ctx, brandID, c.QueryParam("q"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"hits": hits})
}

func (h *Handler) get(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	memoID := c.Param("id")

	m, err := h.service.Get(ctx, memoID)
	if err != nil {
		return err
	}
	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, m.BrandID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) publish(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	memoID := c.Param("id")

	m, err := h.service.Get(ctx, memoID)
	if err != nil {
		return err
	}
	if _, err := h.sessions.RequireBrandAccess(ctx, sess.UserID, m.BrandID); err != nil {
		return err
	}

	published, err := h.service.Publish(ctx, memoID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, published)
}

func (h *Handler) logView(c echo.Context) error {
	var req viewRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	err := h.service.LogView(c.Request().Context(), c.Param("id"), c.RealIP(), req.Referrer)
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
