package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type authRepoStub struct {
	users     map[string]*models.User
	lastLogin time.Time
}

func newAuthRepoStub(t *testing.T, password string, active bool) *authRepoStub {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	studentID := "s1"
	return &authRepoStub{users: map[string]*models.User{
		"u-1": {ID: "u-1", Email: "ana@escola.test", PasswordHash: string(hash), FullName: "Ana", Role: models.RoleStudent, StudentID: &studentID, Active: active},
	}}
}

func (r *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	r.lastLogin = ts
	return nil
}

func (r *authRepoStub) UpdatePassword(ctx context.Context, id, hash string, ts time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	return nil
}

func newAuthServiceForTest(repo *authRepoStub) *AuthService {
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour, Issuer: "escola"})
	svc.now = time.Now
	return svc
}

func TestAuthServiceLoginIssuesStudentToken(t *testing.T) {
	repo := newAuthRepoStub(t, "segredo123", true)
	svc := newAuthServiceForTest(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ANA@escola.test", Password: "segredo123"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.False(t, repo.lastLogin.IsZero())

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "s1", claims.Actor().StudentID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc := newAuthServiceForTest(newAuthRepoStub(t, "segredo123", true))
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@escola.test", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@escola.test", Password: "segredo123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	inactive := newAuthServiceForTest(newAuthRepoStub(t, "segredo123", false))
	_, err = inactive.Login(context.Background(), models.LoginRequest{Email: "ana@escola.test", Password: "segredo123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceValidateTokenRejectsForeignSecret(t *testing.T) {
	repo := newAuthRepoStub(t, "segredo123", true)
	res, err := newAuthServiceForTest(repo).Login(context.Background(), models.LoginRequest{Email: "ana@escola.test", Password: "segredo123"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "another-secret"})
	_, err = other.ValidateToken(res.AccessToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newAuthRepoStub(t, "segredo123", true)
	svc := newAuthServiceForTest(repo)
	ctx := context.Background()
	actor := studentActor("s1")
	actor.UserID = "u-1"

	err := svc.ChangePassword(ctx, actor, models.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "novasenha1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	err = svc.ChangePassword(ctx, actor, models.ChangePasswordRequest{CurrentPassword: "segredo123", NewPassword: "curta"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	require.NoError(t, svc.ChangePassword(ctx, actor, models.ChangePasswordRequest{CurrentPassword: "segredo123", NewPassword: "novasenha1"}))
	_, err = svc.Login(ctx, models.LoginRequest{Email: "ana@escola.test", Password: "novasenha1"})
	assert.NoError(t, err)
}
