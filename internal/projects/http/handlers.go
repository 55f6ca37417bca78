package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/sitehive/sitehive-backend/internal/archive"
	"github.com/sitehive/sitehive-backend/internal/auth"
	"github.com/sitehive/sitehive-backend/internal/projects"
	"github.com/sitehive/sitehive-backend/internal/sites"
	"github.com/sitehive/sitehive-backend/internal/storage"
)

// Store is the projects-repo surface the handlers need.
type Store interface {
	Create(ctx context.Context, userID, name, description, storagePath, entryFile string, size int64) (*projects.Project, error)
	ListByOwner(ctx context.Context, userID, search string) ([]projects.Project, error)
	ByIDForOwner(ctx context.Context, id, userID string) (*projects.Project, error)
	Delete(ctx context.Context, id string) error
}

type Options struct {
	MaxUploadBytes  int64
	MaxExtractBytes int64
	// PublicBaseURL overrides per-request base URL detection when set.
	PublicBaseURL string
}

type Handler struct {
	store  Store
	layout *storage.Layout
	evict  sites.Evictor
	opts   Options
	log    *slog.Logger
}

func NewHandler(store Store, layout *storage.Layout, evict sites.Evictor, opts Options, log *slog.Logger) *Handler {
	return &Handler{store: store, layout: layout, evict: evict, opts: opts, log: log}
}

type projectResponse struct {
	projects.Project
	SiteURL string `json:"siteUrl"`
}

func (h *Handler) create(c *gin.Context) {
	u := auth.CurrentUser(c)

	name := c.PostForm("name")
	description := c.PostForm("description")
	fileHdr, err := c.FormFile("file")
	if err != nil || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "File and project name are required"})
		return
	}
	if !projects.ValidName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Project name must be lowercase letters, digits and hyphens"})
		return
	}
	if fileHdr.Size > h.opts.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "File too large"})
		return
	}

	f, err := fileHdr.Open()
	if err != nil {
		h.internal(c, "open upload", err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, h.opts.MaxUploadBytes+1))
	f.Close()
	if err != nil {
		h.internal(c, "read upload", err)
		return
	}
	if int64(len(data)) > h.opts.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "File too large"})
		return
	}

	// Extract into a private workspace first; the directory only becomes the
	// project's storage path after the record wins the unique-name insert.
	tempDir, err := h.layout.NewTempDir()
	if err != nil {
		h.internal(c, "allocate temp dir", err)
		return
	}

	res, err := archive.Extract(archive.Upload{
		Filename:    fileHdr.Filename,
		ContentType: fileHdr.Header.Get("Content-Type"),
		Data:        data,
	}, tempDir, h.opts.MaxExtractBytes)
	if err != nil {
		// Extract already removed tempDir.
		h.renderExtractError(c, u.Username, name, err)
		return
	}

	storagePath := h.layout.ProjectDir(u.ID, name)
	p, err := h.store.Create(c.Request.Context(), u.ID, name, description, storagePath, res.EntryFile, res.TotalBytes)
	if errors.Is(err, projects.ErrNameTaken) {
		os.RemoveAll(tempDir)
		c.JSON(http.StatusBadRequest, gin.H{"message": "Project name already exists"})
		return
	}
	if err != nil {
		os.RemoveAll(tempDir)
		h.internal(c, "create project", err)
		return
	}

	if _, err := h.layout.Promote(tempDir, u.ID, name); err != nil {
		// Roll the record back rather than leave it pointing at nothing.
		if delErr := h.store.Delete(context.WithoutCancel(c.Request.Context()), p.ID); delErr != nil {
			h.log.Error("rollback project record", "project_id", p.ID, "err", delErr)
		}
		os.RemoveAll(tempDir)
		h.internal(c, "promote upload", err)
		return
	}

	h.evict.Evict(c.Request.Context(), u.Username, p.Name)

	c.JSON(http.StatusCreated, projectResponse{
		Project: *p,
		SiteURL: projects.SiteURL(h.baseURL(c), u.Username, p.Name, p.EntryFile),
	})
}

func (h *Handler) list(c *gin.Context) {
	u := auth.CurrentUser(c)

	items, err := h.store.ListByOwner(c.Request.Context(), u.ID, c.Query("search"))
	if err != nil {
		h.internal(c, "list projects", err)
		return
	}

	base := h.baseURL(c)
	out := make([]projectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse{
			Project: p,
			SiteURL: projects.SiteURL(base, u.Username, p.Name, p.EntryFile),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) delete(c *gin.Context) {
	u := auth.CurrentUser(c)
	id := c.Param("id")

	p, err := h.store.ByIDForOwner(c.Request.Context(), id, u.ID)
	if errors.Is(err, projects.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Project not found"})
		return
	}
	if err != nil {
		h.internal(c, "load project", err)
		return
	}

	// Storage first: a record without files 404s harmlessly, files without a
	// record would be unreachable orphans.
	if err := h.layout.Remove(p.StoragePath); err != nil {
		h.internal(c, "remove project storage", err)
		return
	}
	if err := h.store.Delete(c.Request.Context(), p.ID); err != nil && !errors.Is(err, projects.ErrNotFound) {
		h.internal(c, "delete project record", err)
		return
	}

	h.evict.Evict(c.Request.Context(), u.Username, p.Name)

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

func (h *Handler) renderExtractError(c *gin.Context, username, project string, err error) {
	kind, ok := archive.KindOf(err)
	if !ok {
		h.internal(c, "extract upload", err)
		return
	}
	switch kind {
	case archive.KindMalicious:
		h.log.Warn("malicious archive rejected", "user", username, "project", project, "err", err)
		c.JSON(http.StatusForbidden, gin.H{"message": "Malicious archive rejected"})
	case archive.KindQuotaExceeded:
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Extracted content exceeds the size limit"})
	case archive.KindCorrupt:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid ZIP archive"})
	case archive.KindUnsupported:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Only HTML files are allowed for single file upload"})
	default:
		h.internal(c, "extract upload", err)
	}
}

// baseURL is the public origin used for siteUrl construction: the configured
// base when present, otherwise derived from the request.
func (h *Handler) baseURL(c *gin.Context) string {
	if h.opts.PublicBaseURL != "" {
		return h.opts.PublicBaseURL
	}
	scheme := "http"
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func (h *Handler) internal(c *gin.Context, op string, err error) {
	h.log.Error(op, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
}
