package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUserStore struct {
	users  map[string]*User
	hashes map[string]string
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*User), hashes: make(map[string]string)}
}

func (s *memUserStore) CreateUser(_ context.Context, email, fullName string, phone *string, passwordHash string) (*User, error) {
	if _, exists := s.users[email]; exists {
		return nil, ErrEmailTaken
	}
	u := &User{ID: uuid.New(), Email: email, FullName: fullName, Phone: phone, CreatedAt: time.Now()}
	s.users[email] = u
	s.hashes[email] = passwordHash
	return u, nil
}

func (s *memUserStore) GetUserByEmail(_ context.Context, email string) (*User, string, error) {
	u, ok := s.users[email]
	if !ok {
		return nil, "", ErrUserNotFound
	}
	return u, s.hashes[email], nil
}

func (s *memUserStore) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"Secret!pass", true},
		{"aB#", true},
		{"alllowercase!", false},
		{"ALLUPPERCASE!", false},
		{"NoSpecialChars1", false},
		{"", false},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.password)
		if tc.ok {
			assert.NoError(t, err, tc.password)
		} else {
			assert.ErrorIs(t, err, ErrWeakPassword, tc.password)
		}
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Secret!pass")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret!pass", hash)
	assert.True(t, CheckPassword(hash, "Secret!pass"))
	assert.False(t, CheckPassword(hash, "secret!pass"))
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	userID := uuid.New()

	token, err := issuer.Issue(userID, "jane@example.com")
	require.NoError(t, err)

	got, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a", time.Hour).Issue(uuid.New(), "a@x.com")
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)
	token, err := issuer.Issue(uuid.New(), "a@x.com")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	_, err := NewTokenIssuer("test-secret", time.Hour).Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewService(newMemUserStore(), NewTokenIssuer("test-secret", time.Hour))

	user, token, err := svc.Register(context.Background(), RegisterInput{
		Email:    "  Jane@Example.com ",
		FullName: "Jane Roe",
		Password: "Secret!pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email, "email normalized")
	assert.NotEmpty(t, token)

	loggedIn, _, err := svc.Login(context.Background(), "jane@example.com", "Secret!pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
}

func TestRegisterWeakPassword(t *testing.T) {
	svc := NewService(newMemUserStore(), NewTokenIssuer("test-secret", time.Hour))

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email:    "jane@example.com",
		FullName: "Jane Roe",
		Password: "weakpassword",
	})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(newMemUserStore(), NewTokenIssuer("test-secret", time.Hour))
	in := RegisterInput{Email: "jane@example.com", FullName: "Jane Roe", Password: "Secret!pass"}

	_, _, err := svc.Register(context.Background(), in)
	require.NoError(t, err)
	_, _, err = svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := NewService(newMemUserStore(), NewTokenIssuer("test-secret", time.Hour))
	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email: "jane@example.com", FullName: "Jane Roe", Password: "Secret!pass",
	})
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "jane@example.com", "Wrong!pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "Secret!pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRequireAuthMiddleware(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	userID := uuid.New()
	token, err := issuer.Issue(userID, "jane@example.com")
	require.NoError(t, err)

	var gotID uuid.UUID
	handler := RequireAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserID(r.Context())
		require.True(t, ok)
		gotID = id
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, userID, gotID)
}

func TestRequireAuthRejections(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	handler := RequireAuth(issuer)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer ", "Bearer invalid", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}
