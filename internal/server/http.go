// Package server assembles the HTTP router.
package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	atthandler "github.com/handedalcali/qr-attendance/internal/attendance/handler"
	"github.com/handedalcali/qr-attendance/internal/config"
	"github.com/handedalcali/qr-attendance/internal/server/middleware"
)

// Deps are the handlers and config the router mounts.
type Deps struct {
	Config     *config.Config
	Attendance *atthandler.Handler
	Sessions   SessionRoutes
}

// SessionRoutes is the session handler surface the router mounts. Declared
// here so tests can swap in a stub.
type SessionRoutes interface {
	Create(c *gin.Context)
	Students(c *gin.Context)
	Regenerate(c *gin.Context)
	Clear(c *gin.Context)
	Export(c *gin.Context)
	Live(c *gin.Context)
}

// NewRouter builds the gin engine with CORS, rate limiting, the optional
// client check, and all routes mounted.
func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	allowed := d.Config.AllowedOriginsList()
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOriginFunc = func(origin string) bool {
		return corsOriginAllowed(origin, allowed)
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-Client-Browser", "X-Client-OS")
	r.Use(cors.New(corsCfg))

	rl := middleware.NewRateLimiter(d.Config.RateLimitWindowDuration(), d.Config.RateLimitMax)
	r.Use(rl.Handler())

	if d.Config.ClientCheck {
		r.Use(middleware.ClientCheck(d.Config.AllowedBrowsersList(), d.Config.AllowedOSList()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "env": d.Config.Env})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/attend", d.Attendance.Mark)
		api.POST("/sessions", d.Sessions.Create)
		api.GET("/sessions/:sessionId/students", d.Sessions.Students)
		api.POST("/sessions/:sessionId/regenerate", d.Sessions.Regenerate)
		api.POST("/sessions/:sessionId/clear", d.Sessions.Clear)
		api.GET("/sessions/:sessionId/export", d.Sessions.Export)
		api.GET("/sessions/:sessionId/live", d.Sessions.Live)
	}

	return r
}

// corsOriginAllowed accepts any localhost origin plus the configured list.
func corsOriginAllowed(origin string, allowed []string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if host := u.Hostname(); host == "localhost" || host == "127.0.0.1" {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSuffix(a, "/"), strings.TrimSuffix(origin, "/")) {
			return true
		}
	}
	return false
}

// NewHTTPServer wraps the router in an http.Server with sane timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // websocket routes stream indefinitely
		IdleTimeout:       60 * time.Second,
	}
}
