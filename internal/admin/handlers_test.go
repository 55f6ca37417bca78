package admin

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitehive/sitehive-backend/internal/projects"
	"github.com/sitehive/sitehive-backend/internal/storage"
	"github.com/sitehive/sitehive-backend/internal/users"
)

type fakeStore struct {
	mu          sync.Mutex
	users       map[string]*users.User
	projects    map[string]*projects.Project
	owners      map[string]string // project id -> owner username
	deleted     []string
	statuses    map[string]string
	passwords   map[string]string
	statsResult Stats
}

func newFakeAdminStore() *fakeStore {
	return &fakeStore{
		users:     map[string]*users.User{},
		projects:  map[string]*projects.Project{},
		owners:    map[string]string{},
		statuses:  map[string]string{},
		passwords: map[string]string{},
	}
}

func (s *fakeStore) Stats(context.Context) (*Stats, error) {
	st := s.statsResult
	return &st, nil
}

func (s *fakeStore) ListUsers(context.Context, string, string, string) ([]UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []UserRow
	for _, u := range s.users {
		out = append(out, UserRow{ID: u.ID, Username: u.Username, Role: u.Role, Status: u.Status})
	}
	return out, nil
}

func (s *fakeStore) UserByID(_ context.Context, id string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) SetUserStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return users.ErrNotFound
	}
	s.statuses[id] = status
	return nil
}

func (s *fakeStore) ResetPassword(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return users.ErrNotFound
	}
	s.passwords[id] = hash
	return nil
}

func (s *fakeStore) ProjectsByOwner(_ context.Context, userID string) ([]projects.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []projects.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteUserCascade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return users.ErrNotFound
	}
	delete(s.users, id)
	for pid, p := range s.projects {
		if p.UserID == id {
			delete(s.projects, pid)
		}
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) ListProjects(context.Context, string, string, string) ([]ProjectRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ProjectRow
	for _, p := range s.projects {
		out = append(out, ProjectRow{ID: p.ID, Name: p.Name, OwnerUsername: s.owners[p.ID], Status: p.Status})
	}
	return out, nil
}

func (s *fakeStore) SetProjectStatus(_ context.Context, id, status string) (*projects.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, projects.ErrNotFound
	}
	p.Status = status
	cp := *p
	return &cp, nil
}

func (s *fakeStore) ProjectOwnerUsername(_ context.Context, projectID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[projectID]
	if !ok {
		return "", projects.ErrNotFound
	}
	return owner, nil
}

type evictRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (e *evictRecorder) Evict(_ context.Context, username, projectName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys = append(e.keys, username+"/"+projectName)
}

func newTestHandler(t *testing.T) (*Handler, *fakeStore, *evictRecorder, *storage.Layout) {
	t.Helper()
	layout, err := storage.NewLayout(t.TempDir())
	require.NoError(t, err)
	store := newFakeAdminStore()
	evict := &evictRecorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(store, layout, evict, log), store, evict, layout
}

func adminRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/admin")
	h.Register(g)
	return r
}

func patchJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPatch, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStats(t *testing.T) {
	h, store, _, _ := newTestHandler(t)
	store.statsResult = Stats{TotalUsers: 3, TotalProjects: 7, TotalVisits: 42}
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalProjects":7`)
	assert.Contains(t, rec.Body.String(), `"totalVisits":42`)
}

func TestSetUserStatus(t *testing.T) {
	h, store, _, _ := newTestHandler(t)
	store.users["u1"] = &users.User{ID: "u1", Username: "alice", Role: users.RoleUser, Status: users.StatusActive}
	r := adminRouter(h)

	rec := patchJSON(r, "/api/admin/users/u1/status", `{"status":"BANNED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, users.StatusBanned, store.statuses["u1"])

	// Bad value.
	rec = patchJSON(r, "/api/admin/users/u1/status", `{"status":"FROZEN"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown user.
	rec = patchJSON(r, "/api/admin/users/nope/status", `{"status":"BANNED"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCannotBanAdmin(t *testing.T) {
	h, store, _, _ := newTestHandler(t)
	store.users["a1"] = &users.User{ID: "a1", Username: "root", Role: users.RoleAdmin, Status: users.StatusActive}
	r := adminRouter(h)

	rec := patchJSON(r, "/api/admin/users/a1/status", `{"status":"BANNED"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.statuses)
}

func TestResetPassword(t *testing.T) {
	h, store, _, _ := newTestHandler(t)
	store.users["u1"] = &users.User{ID: "u1", Username: "alice", Role: users.RoleUser}
	r := adminRouter(h)

	rec := patchJSON(r, "/api/admin/users/u1/reset-password", `{"newPassword":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, store.passwords["u1"])
	assert.NotEqual(t, "hunter22", store.passwords["u1"], "password must be stored hashed")

	rec = patchJSON(r, "/api/admin/users/u1/reset-password", `{"newPassword":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUserCascade(t *testing.T) {
	h, store, evict, layout := newTestHandler(t)
	store.users["u1"] = &users.User{ID: "u1", Username: "alice", Role: users.RoleUser}
	store.projects["p1"] = &projects.Project{ID: "p1", UserID: "u1", Name: "blog"}
	store.projects["p2"] = &projects.Project{ID: "p2", UserID: "u1", Name: "docs"}

	for _, name := range []string{"blog", "docs"} {
		dir := layout.ProjectDir("u1", name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>x</p>"), 0o644))
	}

	r := adminRouter(h)
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/u1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err := os.Stat(layout.OwnerDir("u1"))
	assert.True(t, os.IsNotExist(err), "owner storage should be gone")
	assert.Equal(t, []string{"u1"}, store.deleted)
	assert.Empty(t, store.projects)

	evict.mu.Lock()
	assert.ElementsMatch(t, []string{"alice/blog", "alice/docs"}, evict.keys)
	evict.mu.Unlock()
}

func TestCannotDeleteAdmin(t *testing.T) {
	h, store, _, _ := newTestHandler(t)
	store.users["a1"] = &users.User{ID: "a1", Username: "root", Role: users.RoleAdmin}
	r := adminRouter(h)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/a1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.deleted)
}

func TestSetProjectStatusEvictsCache(t *testing.T) {
	h, store, evict, _ := newTestHandler(t)
	store.projects["p1"] = &projects.Project{ID: "p1", UserID: "u1", Name: "blog", Status: projects.StatusActive}
	store.owners["p1"] = "alice"
	r := adminRouter(h)

	rec := patchJSON(r, "/api/admin/projects/p1/status", `{"status":"DISABLED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, projects.StatusDisabled, store.projects["p1"].Status)

	evict.mu.Lock()
	assert.Equal(t, []string{"alice/blog"}, evict.keys)
	evict.mu.Unlock()

	rec = patchJSON(r, "/api/admin/projects/p1/status", `{"status":"BROKEN"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
