package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitehive/sitehive-backend/internal/projects"
	"github.com/sitehive/sitehive-backend/internal/sites"
	"github.com/sitehive/sitehive-backend/internal/storage"
	"github.com/sitehive/sitehive-backend/internal/users"
)

// Store is the admin-repo surface the console endpoints need.
type Store interface {
	Stats(ctx context.Context) (*Stats, error)
	ListUsers(ctx context.Context, search, sortBy, order string) ([]UserRow, error)
	UserByID(ctx context.Context, id string) (*users.User, error)
	SetUserStatus(ctx context.Context, id, status string) error
	ResetPassword(ctx context.Context, id, passwordHash string) error
	ProjectsByOwner(ctx context.Context, userID string) ([]projects.Project, error)
	DeleteUserCascade(ctx context.Context, id string) error
	ListProjects(ctx context.Context, search, sortBy, order string) ([]ProjectRow, error)
	SetProjectStatus(ctx context.Context, id, status string) (*projects.Project, error)
	ProjectOwnerUsername(ctx context.Context, projectID string) (string, error)
}

type Handler struct {
	store  Store
	layout *storage.Layout
	evict  sites.Evictor
	log    *slog.Logger
}

func NewHandler(store Store, layout *storage.Layout, evict sites.Evictor, log *slog.Logger) *Handler {
	return &Handler{store: store, layout: layout, evict: evict, log: log}
}

// Register mounts the console routes on a group already guarded by
// RequireUser + RequireAdmin.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/stats", h.stats)
	rg.GET("/users", h.listUsers)
	rg.PATCH("/users/:id/status", h.setUserStatus)
	rg.PATCH("/users/:id/reset-password", h.resetPassword)
	rg.DELETE("/users/:id", h.deleteUser)
	rg.GET("/projects", h.listProjects)
	rg.PATCH("/projects/:id/status", h.setProjectStatus)
}

func (h *Handler) stats(c *gin.Context) {
	s, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.internal(c, "load stats", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) listUsers(c *gin.Context) {
	rows, err := h.store.ListUsers(c.Request.Context(), c.Query("search"), c.Query("sortBy"), c.Query("order"))
	if err != nil {
		h.internal(c, "list users", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *Handler) setUserStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || (req.Status != users.StatusActive && req.Status != users.StatusBanned) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Status must be ACTIVE or BANNED"})
		return
	}

	target, err := h.store.UserByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		h.internal(c, "load user", err)
		return
	}
	if target.Role == users.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot change admin account status"})
		return
	}

	if err := h.store.SetUserStatus(c.Request.Context(), target.ID, req.Status); err != nil {
		h.internal(c, "update user status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User status updated"})
}

type resetPasswordReq struct {
	NewPassword string `json:"newPassword"`
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil || len(req.NewPassword) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Password must be at least 6 characters"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internal(c, "hash password", err)
		return
	}

	err = h.store.ResetPassword(c.Request.Context(), c.Param("id"), string(hash))
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		h.internal(c, "reset password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

func (h *Handler) deleteUser(c *gin.Context) {
	ctx := c.Request.Context()

	target, err := h.store.UserByID(ctx, c.Param("id"))
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		h.internal(c, "load user", err)
		return
	}
	if target.Role == users.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot delete admin account"})
		return
	}

	owned, err := h.store.ProjectsByOwner(ctx, target.ID)
	if err != nil {
		h.internal(c, "list user projects", err)
		return
	}

	// Storage before records, matching project deletion: files without a
	// record would be orphans nothing ever cleans up.
	if err := h.layout.Remove(h.layout.OwnerDir(target.ID)); err != nil {
		h.internal(c, "remove user storage", err)
		return
	}
	if err := h.store.DeleteUserCascade(ctx, target.ID); err != nil {
		h.internal(c, "delete user", err)
		return
	}

	for _, p := range owned {
		h.evict.Evict(ctx, target.Username, p.Name)
	}
	h.log.Info("user deleted", "user_id", target.ID, "username", target.Username, "projects", len(owned))

	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

func (h *Handler) listProjects(c *gin.Context) {
	rows, err := h.store.ListProjects(c.Request.Context(), c.Query("search"), c.Query("sortBy"), c.Query("order"))
	if err != nil {
		h.internal(c, "list projects", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) setProjectStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || (req.Status != projects.StatusActive && req.Status != projects.StatusDisabled) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Status must be ACTIVE or DISABLED"})
		return
	}

	p, err := h.store.SetProjectStatus(c.Request.Context(), c.Param("id"), req.Status)
	if errors.Is(err, projects.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Project not found"})
		return
	}
	if err != nil {
		h.internal(c, "update project status", err)
		return
	}

	// Serving reads go through the cache, so a disable must become visible
	// immediately, not at TTL expiry.
	owner, err := h.store.ProjectOwnerUsername(c.Request.Context(), p.ID)
	if err == nil {
		h.evict.Evict(c.Request.Context(), owner, p.Name)
	} else {
		h.log.Error("resolve project owner for eviction", "project_id", p.ID, "err", err)
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) internal(c *gin.Context, op string, err error) {
	h.log.Error(op, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
}
