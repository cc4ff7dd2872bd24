package organization

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/email"
	"github.com/stephennewman/contextmemo-sub002/internal/models"
)

type fakeSender struct {
	sent []*email.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg *email.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeSender, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sender := &fakeSender{}
	cfg := &config.Config{}
	cfg.App.BaseURL = "https://app.contextmemo.com"

	service := NewService(db, sender, cfg, logger.NewNoOpLogger())
	return service, mock, sender, func() { db.Close() }
}

func expectMemberRole(mock sqlmock.Sqlmock, orgID, userID, role string) {
	rows := sqlmock.NewRows([]string{"role"})
	if role != "" {
		rows.AddRow(role)
	}
	mock.ExpectQuery("SELECT role FROM organization_members").
		WithArgs(orgID, userID).
		WillReturnRows(rows)
}

func TestChangeRoleOwnerProtected(t *testing.T) {
	service, mock, _, cleanup := newTestService(t)
	defer cleanup()

	expectMemberRole(mock, "org-1", "user-1", models.RoleOwner)

	err := service.ChangeRole(context.Background(), "org-1", "user-1", models.RoleAdmin)
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeOwnerNotRemovable, stdErr.Code)
}

func TestRemoveMemberOwnerProtected(t *testing.T) {
	service, mock, _, cleanup := newTestService(t)
	defer cleanup()

	expectMemberRole(mock, "org-1", "user-1", models.RoleOwner)

	err := service.RemoveMember(context.Background(), "org-1", "user-1")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeOwnerNotRemovable, stdErr.Code)
}

func TestRemoveMemberNotFound(t *testing.T) {
	service, mock, _, cleanup := newTestService(t)
	defer cleanup()

	expectMemberRole(mock, "org-1", "ghost", "")

	err := service.RemoveMember(context.Background(), "org-1", "ghost")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeMemberNotFound, stdErr.Code)
}

func TestCreateInviteSendsEmail(t *testing.T) {
	service, mock, sender, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO organization_invites").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT name FROM organizations").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Acme"))

	invite, err := service.CreateInvite(context.Background(), "org-1", "New.Person@Acme.com", "")
	require.NoError(t, err)
	assert.Equal(t, "new.person@acme.com", invite.Email)
	assert.Equal(t, models.RoleMember, invite.Role)
	assert.Equal(t, models.InvitePending, invite.Status)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), invite.ExpiresAt, time.Minute)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "new.person@acme.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, invite.Token)
	assert.Contains(t, sender.sent[0].Body, "https://app.contextmemo.com/invites/accept")
}

func TestAcceptInviteStatuses(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		expires  time.Time
		wantCode apperrors.ErrorCode
	}{
		{"already accepted", models.InviteAccepted, time.Now().Add(time.Hour), apperrors.ErrCodeInviteAlreadyUsed},
		{"revoked", models.InviteRevoked, time.Now().Add(time.Hour), apperrors.ErrCodeInviteNotFound},
		{"expired", models.InvitePending, time.Now().Add(-time.Hour), apperrors.ErrCodeInviteExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, mock, _, cleanup := newTestService(t)
			defer cleanup()

			mock.ExpectQuery("SELECT (.+) FROM organization_invites WHERE token").
				WithArgs("tok-1").
				WillReturnRows(sqlmock.NewRows([]string{
					"id", "org_id", "email", "role", "status", "created_at", "expires_at",
				}).AddRow("inv-1", "org-1", "a@b.com", "member", tt.status, time.Now(), tt.expires))

			_, err := service.AcceptInvite(context.Background(), "user-1", "tok-1")
			require.Error(t, err)
			stdErr, ok := err.(*apperrors.StandardError)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
		})
	}
}

func TestAcceptInviteHappyPath(t *testing.T) {
	service, mock, _, cleanup := newTestService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM organization_invites WHERE token").
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "org_id", "email", "role", "status", "created_at", "expires_at",
		}).AddRow("inv-1", "org-1", "a@b.com", "admin", models.InvitePending, time.Now(), time.Now().Add(time.Hour)))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organization_members").
		WithArgs("org-1", "user-1", "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE organization_invites SET status").
		WithArgs(models.InviteAccepted, "inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	invite, err := service.AcceptInvite(context.Background(), "user-1", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, models.InviteAccepted, invite.Status)
	assert.Equal(t, "org-1", invite.OrgID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
