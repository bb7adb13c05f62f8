package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"groundchat/config"
	"groundchat/internal/state"
)

// Server is the operational HTTP surface: health, metrics and the
// JWT-guarded debug endpoints over per-chat state.
type Server struct {
	cfg   config.ServerConfig
	state *state.Manager
}

func New(cfg config.ServerConfig, st *state.Manager) *Server {
	return &Server{cfg: cfg, state: st}
}

// Run builds the echo router and serves until the listener fails.
func (s *Server) Run() error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	auth := &AuthHandler{
		Secret:       []byte(s.cfg.JWTSecret),
		PasswordHash: s.cfg.AdminPasswordHash,
	}
	auth.Register(api.Group("/auth"))

	debug := api.Group("/debug")
	debug.Use(authMiddleware(auth.Secret))
	dh := &DebugHandler{State: s.state}
	dh.Register(debug)

	addr := s.cfg.Address
	if addr == "" {
		addr = ":10080"
	}
	log.Printf("ops server listening on %s", addr)
	return e.Start(addr)
}
