package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/centraunit/faces"
	"github.com/centraunit/faces/internal/logger"
	"github.com/centraunit/faces/session"
	"github.com/centraunit/faces/view"
	"github.com/centraunit/faces/viewscope"
)

// Renderer is implemented by beans with a JSON representation.
type Renderer interface {
	Render(ctx context.Context) any
}

type viewResponse struct {
	State string `json:"state"`
	Page  string `json:"page"`
}

type beanResponse struct {
	Name  string `json:"name"`
	View  string `json:"view,omitempty"`
	Value any    `json:"value"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
	})
}

func (s *Server) createView(w http.ResponseWriter, r *http.Request) {
	page := r.URL.Query().Get("page")
	if page == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page is required"})
		return
	}
	fc, _ := faces.CurrentInstance(r.Context())
	root, err := s.views.CreateView(fc, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewResponse{State: root.StateKey(), Page: root.PageID()})
}

// resolveBean resolves a bean for the current view. Outside /views/{state}
// the view may be named by the state query parameter.
func (s *Server) resolveBean(w http.ResponseWriter, r *http.Request) {
	fc, _ := faces.CurrentInstance(r.Context())
	if fc.ViewRoot() == nil {
		if state := s.stateParam(r); state != "" {
			if _, err := s.views.RestoreView(fc, state); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	name := chi.URLParam(r, "name")
	bean, err := s.container.Resolve(fc, name)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := beanResponse{Name: name, Value: fmt.Sprintf("%T", bean)}
	if renderer, ok := bean.(Renderer); ok {
		resp.Value = renderer.Render(fc)
	}
	if root := fc.ViewRoot(); root != nil {
		resp.View = root.StateKey()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) stateParam(r *http.Request) string {
	if state := r.URL.Query().Get(s.cfg.View.StateParam); state != "" {
		return state
	}
	return r.Header.Get(s.cfg.View.StateParam)
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	page := r.URL.Query().Get("page")
	if page == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page is required"})
		return
	}
	fc, _ := faces.CurrentInstance(r.Context())
	root, err := s.views.Navigate(fc, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{State: root.StateKey(), Page: root.PageID()})
}

func (s *Server) destroyView(w http.ResponseWriter, r *http.Request) {
	fc, _ := faces.CurrentInstance(r.Context())
	if err := s.views.DestroyView(fc, fc.ViewRoot()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	fc, _ := faces.CurrentInstance(r.Context())
	s.sessions.Invalidate(fc.Session().ID())
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorF("Writing response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var (
		notFound    *faces.BindingNotFoundError
		unavailable *faces.ContextUnavailableError
		mapGone     *faces.ViewMapUnavailableError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.Is(err, view.ErrViewExpired), errors.As(err, &mapGone):
		status = http.StatusGone
	case errors.As(err, &unavailable), errors.Is(err, session.ErrInvalidated), errors.Is(err, viewscope.ErrRegistryClosed):
		status = http.StatusConflict
	default:
		logger.ErrorF("Request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
