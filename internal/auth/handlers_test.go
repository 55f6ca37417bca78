package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitehive/sitehive-backend/internal/users"
)

type fakeAuthStore struct {
	mu     sync.Mutex
	users  map[string]*users.User
	nextID int
	logs   []string
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{users: map[string]*users.User{}}
}

func (s *fakeAuthStore) addUser(username, password string) *users.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := &users.User{
		ID:           fmt.Sprintf("u%d", s.nextID),
		Username:     username,
		Phone:        "07" + username,
		PasswordHash: string(hash),
		Role:         users.RoleUser,
		Status:       users.StatusActive,
	}
	s.users[u.ID] = u
	return u
}

func (s *fakeAuthStore) ByID(_ context.Context, id string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeAuthStore) Touch(context.Context, string) error { return nil }

func (s *fakeAuthStore) Create(_ context.Context, username, phone, passwordHash string, recoveryCodeHash *string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return nil, users.ErrUsernameTaken
		}
		if u.Phone == phone {
			return nil, users.ErrPhoneTaken
		}
	}
	s.nextID++
	u := &users.User{
		ID:               fmt.Sprintf("u%d", s.nextID),
		Username:         username,
		Phone:            phone,
		PasswordHash:     passwordHash,
		RecoveryCodeHash: recoveryCodeHash,
		Role:             users.RoleUser,
		Status:           users.StatusActive,
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *fakeAuthStore) ByUsername(_ context.Context, username string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}

func (s *fakeAuthStore) ByPhone(_ context.Context, phone string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}

func (s *fakeAuthStore) RecordLoginSuccess(_ context.Context, id, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.FailedAttempts = 0
		u.LockedUntil = nil
	}
	return nil
}

func (s *fakeAuthStore) RecordLoginFailure(_ context.Context, id string, threshold int, lockFor time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, users.ErrNotFound
	}
	u.FailedAttempts++
	if u.FailedAttempts >= threshold {
		until := time.Now().Add(lockFor)
		u.LockedUntil = &until
		u.FailedAttempts = 0
		return true, nil
	}
	return false, nil
}

func (s *fakeAuthStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return users.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.LockedUntil = nil
	return nil
}

func (s *fakeAuthStore) UpdateRecoveryCode(_ context.Context, id, recoveryCodeHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return users.ErrNotFound
	}
	u.RecoveryCodeHash = &recoveryCodeHash
	return nil
}

func (s *fakeAuthStore) AddLoginLog(_ context.Context, userID, _, _, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, userID+":"+status)
	return nil
}

func authRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, Options{
		Secret:           []byte("test-secret"),
		TokenTTL:         time.Hour,
		LockoutThreshold: 3,
		LockoutDuration:  10 * time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := gin.New()
	h.Register(r.Group("/api/auth"))
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRegister(t *testing.T) {
	store := newFakeAuthStore()
	r := authRouter(store)

	rec := postJSON(r, "/api/auth/register", gin.H{
		"username": "alice", "password": "hunter22", "phone": "0711111111",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Same username again.
	rec = postJSON(r, "/api/auth/register", gin.H{
		"username": "alice", "password": "hunter22", "phone": "0722222222",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username already exists")

	// Username not fit for a subdomain label.
	rec = postJSON(r, "/api/auth/register", gin.H{
		"username": "Bad Name!", "password": "hunter22", "phone": "0733333333",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Short password.
	rec = postJSON(r, "/api/auth/register", gin.H{
		"username": "bob", "password": "x", "phone": "0744444444",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	store := newFakeAuthStore()
	store.addUser("alice", "hunter22")
	r := authRouter(store)

	rec := postJSON(r, "/api/auth/login", gin.H{"username": "alice", "password": "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token    string `json:"token"`
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, users.RoleUser, resp.Role)

	claims, err := ParseToken(resp.Token, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	store := newFakeAuthStore()
	store.addUser("alice", "hunter22")
	r := authRouter(store)

	rec := postJSON(r, "/api/auth/login", gin.H{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown usernames get the same response, no account probing.
	rec = postJSON(r, "/api/auth/login", gin.H{"username": "ghost", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")
}

func TestLoginLockout(t *testing.T) {
	store := newFakeAuthStore()
	u := store.addUser("alice", "hunter22")
	r := authRouter(store)

	// Threshold is 3: the third failure locks.
	for i := 0; i < 2; i++ {
		rec := postJSON(r, "/api/auth/login", gin.H{"username": "alice", "password": "nope"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := postJSON(r, "/api/auth/login", gin.H{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusLocked, rec.Code)

	// Even the right password is rejected while locked.
	rec = postJSON(r, "/api/auth/login", gin.H{"username": "alice", "password": "hunter22"})
	assert.Equal(t, http.StatusLocked, rec.Code)

	store.mu.Lock()
	assert.NotNil(t, store.users[u.ID].LockedUntil)
	store.mu.Unlock()
}

func TestLoginBanned(t *testing.T) {
	store := newFakeAuthStore()
	u := store.addUser("alice", "hunter22")
	store.mu.Lock()
	store.users[u.ID].Status = users.StatusBanned
	store.mu.Unlock()
	r := authRouter(store)

	rec := postJSON(r, "/api/auth/login", gin.H{"username": "alice", "password": "hunter22"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	store := newFakeAuthStore()
	store.addUser("alice", "hunter22")
	r := authRouter(store)

	// Burst is 5 per client IP; the sixth immediate attempt is throttled.
	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = postJSON(r, "/api/auth/login", gin.H{"username": "alice", "password": "hunter22"})
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestForgotPassword(t *testing.T) {
	store := newFakeAuthStore()
	u := store.addUser("alice", "hunter22")
	rc, _ := bcrypt.GenerateFromPassword([]byte("rescue-code"), bcrypt.MinCost)
	rcs := string(rc)
	store.mu.Lock()
	store.users[u.ID].RecoveryCodeHash = &rcs
	store.mu.Unlock()
	r := authRouter(store)

	rec := postJSON(r, "/api/auth/forgot", gin.H{
		"phone": u.Phone, "recoveryCode": "rescue-code", "newPassword": "newpass99",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postJSON(r, "/api/auth/login", gin.H{"username": "alice", "password": "newpass99"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Wrong code.
	rec = postJSON(r, "/api/auth/forgot", gin.H{
		"phone": u.Phone, "recoveryCode": "wrong", "newPassword": "zzz999",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangePassword(t *testing.T) {
	store := newFakeAuthStore()
	store.addUser("alice", "hunter22")
	r := authRouter(store)

	rec := postJSON(r, "/api/auth/login", gin.H{"username": "alice", "password": "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	raw, _ := json.Marshal(gin.H{"oldPassword": "hunter22", "newPassword": "newpass99"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/change-password", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postJSON(r, "/api/auth/login", gin.H{"username": "alice", "password": "newpass99"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLookupUsername(t *testing.T) {
	store := newFakeAuthStore()
	u := store.addUser("alice", "hunter22")
	r := authRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/lookup-username?phone="+u.Phone, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")

	req = httptest.NewRequest(http.MethodGet, "/api/auth/lookup-username?phone=000", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
