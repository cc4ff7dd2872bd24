package organization

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
	"github.com/stephennewman/contextmemo-sub002/internal/server"
)

type changeRoleRequest struct {
	Role string `json:"role"`
}

type createInviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

type Handler struct {
	service  *Service
	sessions *auth.Store
}

func NewHandler(service *Service, sessions *auth.Store) *Handler {
	return &Handler{service: service, sessions: sessions}
}

func (h *Handler) Register(api *echo.Group, _ *echo.Group) {
	api.GET("/orgs", h.listOrgs)
	api.GET("/orgs/:id/members", h.listMembers)
	api.PATCH("/orgs/:id/members/:userID", h.changeRole)
	api.DELETE("/orgs/:id/members/:userID", h.removeMember)
	api.POST("/orgs/:id/invites", h.createInvite)
	api.GET("/orgs/:id/invites", h.listInvites)
	api.DELETE("/orgs/:id/invites/:inviteID", h.revokeInvite)
	api.POST("/invites/accept", h.acceptInvite)
}

func (h *Handler) listOrgs(c echo.Context) error {
	sess := server.CurrentSession(c)
	orgs, err := h.service.ListForUser(c.Request().Context(), sess.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"organizations": orgs})
}

func (h *Handler) listMembers(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	orgID := c.Param("id")

	if err := h.sessions.RequireOrgRole(ctx, sess.UserID, orgID, models.RoleMember); err != nil {
		return err
	}
	members, err := h.service.ListMembers(ctx, orgID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"members": members})
}

func (h *Handler) changeRole(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	orgID := c.Param("id")

	if err := h.sessions.RequireOrgRole(ctx, sess.UserID, orgID, models.RoleAdmin); err != nil {
		return err
	}

	var req changeRoleRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	if err := h.service.ChangeRole(ctx, orgID, c.Param("userID"), req.Role); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) removeMember(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	orgID := c.Param("id")

	if err := h.sessions.RequireOrgRole(ctx, sess.UserID, orgID, models.RoleAdmin); err != nil {
		return err
	}
	if err := h.service.RemoveMember(ctx, orgID, c.Param("userID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) createInvite(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	orgID := c.Param("id")

	if err := h.sessions.RequireOrgRole(ctx, sess.UserID, orgID, models.RoleAdmin); err != nil {
		return err
	}

	var req createInviteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	invite, err := h.service.CreateInvite(ctx, orgID, req.Email, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, invite)
}

func (h *Handler) listInvites(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	orgID := c.Param("id")

	if err := h.sessions.RequireOrgRole(ctx, sess.UserID, orgID, models.RoleAdmin); err != nil {
		return err
	}
	invites, err := h.service.ListInvites(ctx, orgID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"invites": invites})
}

func (h *Handler) revokeInvite(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)
	orgID := c.Param("id")

	if err := h.sessions.RequireOrgRole(ctx, sess.UserID, orgID, models.RoleAdmin); err != nil {
		return err
	}
	if err := h.service.RevokeInvite(ctx, orgID, c.Param("inviteID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) acceptInvite(c echo.Context) error {
	ctx := c.Request().Context()
	sess := server.CurrentSession(c)

	var req acceptInviteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("invalid request body")
	}
	invite, err := h.service.AcceptInvite(ctx, sess.UserID, req.Token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invite)
}
