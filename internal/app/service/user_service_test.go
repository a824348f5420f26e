package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	"github.com/tiendaweb/tienda-backend/pkg/util"
)

const testJWTSecret = "test-jwt-secret"

type fakeRevoker struct {
	tokens map[string]time.Duration
}

func (f *fakeRevoker) BlacklistToken(_ context.Context, token string, expiry time.Duration) error {
	f.tokens[token] = expiry
	return nil
}

func setupUserServiceTest(t *testing.T) (UserService, *fakeRevoker) {
	testDB := setupServiceDB(t)
	revoker := &fakeRevoker{tokens: map[string]time.Duration{}}
	return NewUserService(repository.NewUserRepository(testDB), revoker, testJWTSecret, time.Hour), revoker
}

func TestUserService_Register(t *testing.T) {
	svc, _ := setupUserServiceTest(t)

	tests := []struct {
		name    string
		email   string
		wantErr error
	}{
		{name: "Valid registration", email: "ana@example.com"},
		{name: "Duplicate email", email: "ana@example.com", wantErr: ErrEmailAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Register("Ana", tt.email, "secreto123")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, user.ID)
			assert.NotEqual(t, "secreto123", user.PasswordHash)
			assert.True(t, util.VerifyPassword(user.PasswordHash, "secreto123"))
		})
	}
}

func TestUserService_Login(t *testing.T) {
	svc, _ := setupUserServiceTest(t)

	user, err := svc.Register("Ana", "ana@example.com", "secreto123")
	require.NoError(t, err)

	_, err = svc.Login("nadie@example.com", "secreto123")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Login("ana@example.com", "otra")
	assert.ErrorIs(t, err, ErrWrongPassword)

	result, err := svc.Login("ana@example.com", "secreto123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.Equal(t, "Ana", result.User.Name)

	claims, err := util.ValidateToken(result.Token, testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.InDelta(t, time.Hour.Seconds(), claims.RemainingValidity().Seconds(), 5)
}

func TestUserService_UpdateUser(t *testing.T) {
	svc, _ := setupUserServiceTest(t)

	user, err := svc.Register("Ana", "ana@example.com", "secreto123")
	require.NoError(t, err)
	_, err = svc.Register("Luis", "luis@example.com", "secreto123")
	require.NoError(t, err)

	_, err = svc.UpdateUser(999, UpdateUserInput{Name: "X", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	updated, err := svc.UpdateUser(user.ID, UpdateUserInput{Name: "Ana María", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", updated.Name)
	assert.True(t, util.VerifyPassword(updated.PasswordHash, "secreto123"), "password kept when not supplied")

	_, err = svc.UpdateUser(user.ID, UpdateUserInput{Name: "Ana", Email: "ana@example.com", Password: "nueva"})
	require.NoError(t, err)
	_, err = svc.Login("ana@example.com", "nueva")
	assert.NoError(t, err)

	_, err = svc.UpdateUser(user.ID, UpdateUserInput{Name: "Ana", Email: "luis@example.com"})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestUserService_DeleteAndList(t *testing.T) {
	svc, _ := setupUserServiceTest(t)

	user, err := svc.Register("Ana", "ana@example.com", "secreto123")
	require.NoError(t, err)

	users, err := svc.ListUsers()
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, svc.DeleteUser(user.ID))
	assert.ErrorIs(t, svc.DeleteUser(user.ID), ErrUserNotFound)
}

func TestUserService_Logout(t *testing.T) {
	svc, revoker := setupUserServiceTest(t)

	_, err := svc.Register("Ana", "ana@example.com", "secreto123")
	require.NoError(t, err)
	result, err := svc.Login("ana@example.com", "secreto123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), result.Token))
	expiry, ok := revoker.tokens[result.Token]
	require.True(t, ok)
	assert.True(t, expiry > 0 && expiry <= time.Hour)

	assert.ErrorIs(t, svc.Logout(context.Background(), "garbage"), util.ErrInvalidToken)

	noRedis := NewUserService(nil, nil, testJWTSecret, time.Hour)
	assert.ErrorIs(t, noRedis.Logout(context.Background(), result.Token), ErrRevocationUnavailable)
}
