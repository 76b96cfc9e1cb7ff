package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"groupcart/internal/model"
	"groupcart/internal/repository"
	"groupcart/internal/utils"
	pkgutils "groupcart/pkg/utils"
)

type fakePersister struct {
	calls int
	last  interface{}
}

func (p *fakePersister) Persist(name string, v interface{}) {
	if name == repository.SnapshotUsers {
		p.calls++
		p.last = v
	}
}

func newTestService(p repository.Persister) *authService {
	svc := NewAuthService(utils.NewJWTManager("test-secret", "groupcart", 7*24*time.Hour), p).(*authService)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestSignup(t *testing.T) {
	ctx := context.Background()
	p := &fakePersister{}
	svc := newTestService(p)

	resp, err := svc.Signup(ctx, &SignupRequest{Name: "Asha", Email: " Asha@Example.com ", Password: "pw123456"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, model.PublicUser{Name: "Asha", Email: "asha@example.com"}, resp.User)

	require.Equal(t, 1, p.calls)
	users := p.last.([]model.User)
	require.Len(t, users, 1)
	assert.NotEqual(t, "pw123456", users[0].PasswordHash)

	claims, err := svc.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", claims.Email)
	assert.Equal(t, "Asha", claims.Name)

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := svc.Signup(ctx, &SignupRequest{Name: "Other", Email: "asha@example.com", Password: "x"})
		assert.ErrorIs(t, err, pkgutils.ErrDuplicateItem)
		assert.Equal(t, "Email already exists", pkgutils.GetErrorMessage(err))
		assert.Equal(t, 1, p.calls)
	})

	t.Run("MissingFields", func(t *testing.T) {
		tests := []SignupRequest{
			{Email: "a@b.co", Password: "x"},
			{Name: "A", Password: "x"},
			{Name: "A", Email: "a@b.co"},
		}
		for _, req := range tests {
			req := req
			_, err := svc.Signup(ctx, &req)
			assert.ErrorIs(t, err, pkgutils.ErrValidation)
			assert.Equal(t, "All fields required", pkgutils.GetErrorMessage(err))
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	_, err := svc.Signup(ctx, &SignupRequest{Name: "Asha", Email: "asha@example.com", Password: "pw123456"})
	require.NoError(t, err)

	resp, err := svc.Login(ctx, &LoginRequest{Email: "ASHA@example.com", Password: "pw123456"})
	require.NoError(t, err)
	assert.Equal(t, "Asha", resp.User.Name)

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{"WrongPassword", LoginRequest{Email: "asha@example.com", Password: "nope"}},
		{"UnknownEmail", LoginRequest{Email: "bob@example.com", Password: "pw123456"}},
		{"Empty", LoginRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, &tt.req)
			assert.ErrorIs(t, err, pkgutils.ErrValidation)
			assert.Equal(t, "Invalid credentials", pkgutils.GetErrorMessage(err))
		})
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := newTestService(nil).ValidateToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, pkgutils.ErrUnauthorized)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	svc := newTestService(nil)
	svc.Restore([]model.User{
		{Name: "Asha", Email: "Asha@example.com", PasswordHash: string(hash)},
		{Name: "Dup", Email: "asha@example.com", PasswordHash: "x"},
		{Name: "NoEmail"},
	})

	resp, err := svc.Login(ctx, &LoginRequest{Email: "asha@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "Asha", resp.User.Name)
	assert.Len(t, svc.order, 1)
}
