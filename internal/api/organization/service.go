// Package organization manages tenant organizations, memberships, and email
// invites.
package organization

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/common/validation"
	"github.com/stephennewman/contextmemo-sub002/internal/email"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

const inviteTTL = 7 * 24 * time.Hour

type Service struct {
	db      *sql.DB
	sender  email.Sender
	baseURL string
	logger  logger.Logger
}

func NewService(db *sql.DB, sender email.Sender, cfg *config.Config, log logger.Logger) *Service {
	return &Service{
		db:      db,
		sender:  sender,
		baseURL: strings.TrimRight(cfg.App.BaseURL, "/"),
		logger:  log.WithFields(map[string]interface{}{"component": "organization"}),
	}
}

// ListForUser returns the organizations the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.name, o.created_at FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = $1 ORDER BY o.created_at`, userID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_orgs", err)
	}
	defer rows.Close()

	orgs := []models.Organization{}
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_org", err)
		}
		orgs = append(orgs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_orgs", err)
	}
	return orgs, nil
}

// ListMembers returns the members of an organization with user details.
func (s *Service) ListMembers(ctx context.Context, orgID string) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.org_id, m.user_id, u.email, u.name, m.role, m.created_at
		 FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.org_id = $1 ORDER BY m.created_at`, orgID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_members", err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.OrgID, &m.UserID, &m.Email, &m.Name, &m.Role, &m.CreatedAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_members", err)
	}
	return members, nil
}

// ChangeRole sets a member's role. The owner role can only be held by one
// user; promoting to owner is rejected here.
func (s *Service) ChangeRole(ctx context.Context, orgID, userID, role string) error {
	if role != models.RoleMember && role != models.RoleAdmin {
		return apperrors.NewValidationError(fmt.Sprintf("role must be member or admin, got %q", role))
	}

	current, err := s.memberRole(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if current == "" {
		return apperrors.NewNotFoundError(apperrors.ErrCodeMemberNotFound, userID)
	}
	if current == models.RoleOwner {
		return &apperrors.StandardError{
			Code:    apperrors.ErrCodeOwnerNotRemovable,
			Message: "the organization owner's role cannot be changed",
		}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE organization_members SET role = $1 WHERE org_id = $2 AND user_id = $3`,
		role, orgID, userID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("change_role", err)
	}

	s.logger.Info("member role changed", map[string]interface{}{
		"orgId":  orgID,
		"userId": userID,
		"role":   role,
	})
	return nil
}

// RemoveMember drops a membership. Owners cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, orgID, userID string) error {
	current, err := s.memberRole(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if current == "" {
		return apperrors.NewNotFoundError(apperrors.ErrCodeMemberNotFound, userID)
	}
	if current == models.RoleOwner {
		return &apperrors.StandardError{
			Code:    apperrors.ErrCodeOwnerNotRemovable,
			Message: "the organization owner cannot be removed",
		}
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM organization_members WHERE org_id = $1 AND user_id = $2`, orgID, userID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("remove_member", err)
	}

	s.logger.Info("member removed", map[string]interface{}{
		"orgId":  orgID,
		"userId": userID,
	})
	return nil
}

// CreateInvite writes a pending invite and emails the join link.
func (s *Service) CreateInvite(ctx context.Context, orgID, inviteEmail, role string) (*models.Invite, error) {
	inviteEmail = strings.ToLower(strings.TrimSpace(inviteEmail))
	if !validation.ValidateEmail(inviteEmail) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid email: %s", inviteEmail))
	}
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember && role != models.RoleAdmin {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invite role must be member or admin, got %q", role))
	}

	invite := &models.Invite{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Email:     inviteEmail,
		Role:      role,
		Token:     uuid.New().String(),
		Status:    models.InvitePending,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(inviteTTL),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organization_invites (id, org_id, email, role, token, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		invite.ID, invite.OrgID, invite.Email, invite.Role, invite.Token,
		invite.Status, invite.CreatedAt, invite.ExpiresAt)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	var orgName string
	if err := s.db.QueryRowContext(ctx,
		`SELECT name FROM organizations WHERE id = $1`, orgID).Scan(&orgName); err != nil {
		orgName = "your team"
	}

	msg := &email.Message{
		To:      inviteEmail,
		Subject: fmt.Sprintf("You have been invited to join %s on Context Memo", orgName),
		Body: fmt.Sprintf(
			"You have been invited to join %s as %s.\n\nAccept the invite:\n%s/invites/accept?token=%s\n\nThe invite expires in 7 days.",
			orgName, role, s.baseURL, invite.Token),
		Kind: "invite",
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		// invite row stays valid; the admin can resend from the invite list
		s.logger.Warn("invite email failed", map[string]interface{}{
			"orgId": orgID,
			"email": inviteEmail,
			"error": err.Error(),
		})
	}

	s.logger.Info("invite created", map[string]interface{}{
		"orgId":    orgID,
		"inviteId": invite.ID,
		"role":     role,
	})
	return invite, nil
}

// ListInvites returns an org's invites without tokens.
func (s *Service) ListInvites(ctx context.Context, orgID string) ([]models.Invite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, email, role, status, created_at, expires_at
		 FROM organization_invites WHERE org_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_invites", err)
	}
	defer rows.Close()

	invites := []models.Invite{}
	for rows.Next() {
		var inv models.Invite
		if err := rows.Scan(&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.Status, &inv.CreatedAt, &inv.ExpiresAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_invite", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_invites", err)
	}
	return invites, nil
}

// RevokeInvite marks a pending invite revoked.
func (s *Service) RevokeInvite(ctx context.Context, orgID, inviteID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE organization_invites SET status = $1
		 WHERE id = $2 AND org_id = $3 AND status = $4`,
		models.InviteRevoked, inviteID, orgID, models.InvitePending)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("revoke_invite", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError(apperrors.ErrCodeInviteNotFound, inviteID)
	}
	return nil
}

// AcceptInvite validates the token, inserts the membership, and marks the
// invite accepted.
func (s *Service) AcceptInvite(ctx context.Context, userID, token string) (*models.Invite, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperrors.NewValidationError("token is required")
	}

	var inv models.Invite
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, email, role, status, created_at, expires_at
		 FROM organization_invites WHERE token = $1`, token,
	).Scan(&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.Status, &inv.CreatedAt, &inv.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError(apperrors.ErrCodeInviteNotFound, token)
		}
		return nil, apperrors.NewQueryExecutionFailedError("load_invite", err)
	}

	if inv.Status == models.InviteAccepted {
		return nil, apperrors.NewInviteAlreadyUsedError(inv.ID)
	}
	if inv.Status != models.InvitePending {
		return nil, apperrors.NewNotFoundError(apperrors.ErrCodeInviteNotFound, inv.ID)
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, apperrors.NewInviteExpiredError(inv.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("accept_invite", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO organization_members (org_id, user_id, role, created_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (org_id, user_id) DO NOTHING`,
		inv.OrgID, userID, inv.Role)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE organization_invites SET status = $1 WHERE id = $2`,
		models.InviteAccepted, inv.ID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("accept_invite", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("accept_invite", err)
	}

	inv.Status = models.InviteAccepted
	s.logger.Info("invite accepted", map[string]interface{}{
		"orgId":    inv.OrgID,
		"inviteId": inv.ID,
		"userId":   userID,
	})
	return &inv, nil
}

func (s *Service) memberRole(ctx context.Context, orgID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM organization_members WHERE org_id = $1 AND user_id = $2`,
		orgID, userID).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", apperrors.NewQueryExecutionFailedError("member_role", err)
	}
	return role, nil
}
