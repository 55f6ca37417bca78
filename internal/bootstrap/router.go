package bootstrap

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sitehive/sitehive-backend/config"
	"github.com/sitehive/sitehive-backend/internal/admin"
	httpapi "github.com/sitehive/sitehive-backend/internal/api/http"
	"github.com/sitehive/sitehive-backend/internal/api/http/middleware"
	"github.com/sitehive/sitehive-backend/internal/auth"
	"github.com/sitehive/sitehive-backend/internal/projects"
	projecthttp "github.com/sitehive/sitehive-backend/internal/projects/http"
	"github.com/sitehive/sitehive-backend/internal/sites"
	"github.com/sitehive/sitehive-backend/internal/storage"
	"github.com/sitehive/sitehive-backend/internal/users"
)

type RouterDeps struct {
	Cfg    *config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client // nil disables the site lookup cache
	Layout *storage.Layout
	Log    *slog.Logger
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	if dep.Cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(dep.Log))
	r.Use(cors.Default())

	healthHandler := httpapi.NewHealthHandler("sitehive-backend", dep.Cfg.App.Version, dep.DB, dep.Cache)
	healthHandler.RegisterRoutes(r)

	userRepo := users.NewRepo(dep.DB)
	projectRepo := projects.NewRepo(dep.DB)
	adminRepo := admin.NewRepo(dep.DB)

	var lookup sites.Lookup = projectRepo
	var evictor sites.Evictor = sites.NopEvictor{}
	if dep.Cache != nil {
		cache := sites.NewSiteCache(projectRepo, dep.Cache, dep.Cfg.Redis.CacheTTL, dep.Log)
		lookup = cache
		evictor = cache
	}
	siteServer := sites.NewServer(lookup, dep.Log)

	secret := []byte(dep.Cfg.Auth.JWTSecret)
	api := r.Group("/api")

	authHandler := auth.NewHandler(userRepo, auth.Options{
		Secret:           secret,
		TokenTTL:         dep.Cfg.Auth.TokenTTL,
		LockoutThreshold: dep.Cfg.Auth.LockoutThreshold,
		LockoutDuration:  dep.Cfg.Auth.LockoutDuration,
	}, dep.Log)
	authHandler.Register(api.Group("/auth"))

	projectsGroup := api.Group("/projects")
	projectsGroup.Use(auth.RequireUser(userRepo, secret))
	projectHandler := projecthttp.NewHandler(projectRepo, dep.Layout, evictor, projecthttp.Options{
		MaxUploadBytes:  dep.Cfg.Upload.MaxUploadBytes,
		MaxExtractBytes: dep.Cfg.Upload.MaxExtractBytes,
		PublicBaseURL:   dep.Cfg.Server.PublicBaseURL,
	}, dep.Log)
	projectHandler.Register(projectsGroup)

	adminGroup := api.Group("/admin")
	adminGroup.Use(auth.RequireUser(userRepo, secret), auth.RequireAdmin())
	adminHandler := admin.NewHandler(adminRepo, dep.Layout, evictor, dep.Log)
	adminHandler.Register(adminGroup)

	// Everything unmatched is either site traffic (classified from host and
	// path, which gin route patterns cannot express) or the dashboard SPA.
	clientDist := dep.Cfg.Server.ClientDist
	r.NoRoute(func(c *gin.Context) {
		// Site serving and the SPA document are GET-only; anything else that
		// reached NoRoute has no handler.
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.String(http.StatusNotFound, "Not found")
			return
		}
		route := sites.Classify(c.Request.Host, c.Request.URL.Path)
		switch route.Kind {
		case sites.KindPathSite, sites.KindSubdomainSite:
			siteServer.ServeSite(c, route.Owner, route.Project, route.Rest)
		case sites.KindAPI:
			c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
		default:
			serveFrontend(c, clientDist)
		}
	})

	return r
}

// serveFrontend serves the dashboard build: static assets when the file
// exists, index.html for everything else so client-side routing works.
// Reserved prefixes never get the SPA document.
func serveFrontend(c *gin.Context, clientDist string) {
	if sites.ReservedPath(c.Request.URL.Path) {
		c.String(http.StatusNotFound, "Not found")
		return
	}

	if clientDist != "" {
		target, err := storage.ResolveWithinRoot(clientDist, c.Request.URL.Path)
		if err == nil {
			if info, statErr := os.Stat(target); statErr == nil && !info.IsDir() {
				c.File(target)
				return
			}
		}
		index := filepath.Join(clientDist, "index.html")
		if _, err := os.Stat(index); err == nil {
			c.File(index)
			return
		}
	}
	c.String(http.StatusNotFound, "Not found")
}
