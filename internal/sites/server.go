package sites

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitehive/sitehive-backend/internal/projects"
	"github.com/sitehive/sitehive-backend/internal/storage"
)

// Lookup resolves site requests to project records and accounts visits.
// Implemented by the projects repo, optionally wrapped by the redis cache.
type Lookup interface {
	SiteLookup(ctx context.Context, username, projectName string) (*projects.SiteRecord, error)
	AddVisit(ctx context.Context, projectID string) error
}

// Server turns a classified site route into a file response. Errors render
// as plain status + short text: visitors are browsers, not API clients.
type Server struct {
	lookup Lookup
	log    *slog.Logger
}

func NewServer(lookup Lookup, log *slog.Logger) *Server {
	return &Server{lookup: lookup, log: log}
}

// ServeSite handles one GET for (owner, project, rest) as produced by
// Classify.
func (s *Server) ServeSite(c *gin.Context, owner, projectName, rest string) {
	ctx := c.Request.Context()

	rec, err := s.lookup.SiteLookup(ctx, owner, projectName)
	if errors.Is(err, projects.ErrNotFound) {
		c.String(http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		s.log.Error("site lookup", "owner", owner, "project", projectName, "err", err)
		c.String(http.StatusInternalServerError, "Server error")
		return
	}

	if rec.Disabled() {
		c.String(http.StatusForbidden, "Project has been disabled by admin")
		return
	}

	// Bare project URL without trailing slash: redirect so relative asset
	// links inside the page resolve under the project, not beside it.
	if rest == "" {
		redirect(c, c.Request.URL.Path+"/")
		return
	}

	// Project root with a non-default entry file: one redirect appending the
	// entry name. Guarded on entry != index.html so it cannot loop.
	if rest == "/" && rec.EntryFile != "" && rec.EntryFile != "index.html" {
		redirect(c, c.Request.URL.Path+rec.EntryFile)
		return
	}

	relPath := strings.TrimPrefix(rest, "/")
	if relPath == "" {
		relPath = "index.html"
	}

	abs, err := storage.ResolveWithinRoot(rec.StoragePath, relPath)
	if err != nil {
		// Security event: distinguishable from a genuine 404 in the logs.
		s.log.Warn("blocked path traversal attempt",
			"owner", owner, "project", projectName, "path", relPath)
		c.String(http.StatusForbidden, "Access denied")
		return
	}

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		c.String(http.StatusNotFound, "File not found")
		return
	}

	// Only entry-page loads count as visits; deep-linked assets do not.
	if relPath == "index.html" || relPath == rec.EntryFile {
		s.countVisit(rec.ProjectID)
	}

	if strings.EqualFold(filepath.Ext(abs), ".html") {
		doc, err := os.ReadFile(abs)
		if err != nil {
			c.String(http.StatusNotFound, "File not found")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", InjectProtection(doc))
		return
	}

	c.File(abs)
}

// countVisit is fire-and-forget: the response never waits on it and never
// fails because of it.
func (s *Server) countVisit(projectID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.lookup.AddVisit(ctx, projectID); err != nil {
			s.log.Error("visit count increment", "project_id", projectID, "err", err)
		}
	}()
}

func redirect(c *gin.Context, location string) {
	if q := c.Request.URL.RawQuery; q != "" {
		location += "?" + q
	}
	c.Redirect(http.StatusFound, location)
}
