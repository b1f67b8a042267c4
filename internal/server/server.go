// Package server exposes views and their beans over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/centraunit/faces"
	"github.com/centraunit/faces/internal/config"
	"github.com/centraunit/faces/internal/logger"
	"github.com/centraunit/faces/session"
	"github.com/centraunit/faces/view"
)

// Server binds the faces runtime to HTTP: one FacesContext per request, the
// session found through a cookie, the view through its state key.
type Server struct {
	cfg       config.Config
	app       *faces.Application
	container *faces.Container
	sessions  *session.Manager
	views     *view.Handler
}

func New(cfg config.Config, app *faces.Application, container *faces.Container, sessions *session.Manager, views *view.Handler) *Server {
	return &Server{
		cfg:       cfg,
		app:       app,
		container: container,
		sessions:  sessions,
		views:     views,
	}
}

// Routes returns the HTTP handler of the server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.healthz)

	r.Group(func(r chi.Router) {
		r.Use(s.facesContext)

		r.Post("/views", s.createView)
		r.Get("/beans/{name}", s.resolveBean)
		r.Post("/logout", s.logout)

		r.Route("/views/{state}", func(r chi.Router) {
			r.Use(s.restoreView)
			r.Get("/beans/{name}", s.resolveBean)
			r.Post("/navigate", s.navigate)
			r.Delete("/", s.destroyView)
		})
	})
	return r
}

// Run serves on the configured address until ctx is done, then shuts down
// gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:     s.Routes(),
		ReadTimeout: s.cfg.Server.ReadTimeout,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()
	logger.InfoF("Listening on %s", listener.Addr())

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.DebugF("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

// facesContext finds or starts the caller's session and wraps the request
// in a FacesContext that is released when the handler returns.
func (s *Server) facesContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.session(w, r)
		fc := faces.NewFacesContext(r.Context(), s.app, sess, r)
		defer fc.Release()
		next.ServeHTTP(w, r.WithContext(fc))
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	if cookie, err := r.Cookie(s.cfg.Session.CookieName); err == nil {
		if sess, ok := s.sessions.Get(cookie.Value); ok {
			return sess
		}
	}
	sess := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    sess.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// restoreView makes the view named by the {state} path parameter current.
func (s *Server) restoreView(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fc, _ := faces.CurrentInstance(r.Context())
		if _, err := s.views.RestoreView(fc, chi.URLParam(r, "state")); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
