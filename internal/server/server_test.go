package server_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/centraunit/faces"
	"github.com/centraunit/faces/internal/config"
	"github.com/centraunit/faces/internal/server"
	"github.com/centraunit/faces/session"
	"github.com/centraunit/faces/view"
	"github.com/centraunit/faces/viewscope"
)

type ServerTestSuite struct {
	suite.Suite
	cfg      config.Config
	sessions *session.Manager
	server   *server.Server
	http     *httptest.Server
	client   *http.Client
}

func (s *ServerTestSuite) SetupTest() {
	s.cfg = config.Default()
	s.cfg.View.NumberOfViews = 3

	app := faces.NewApplication()
	container := faces.NewContainer()
	s.Require().NoError(container.RegisterScope(faces.ScopeView, viewscope.New()))
	s.Require().NoError(container.RegisterScope(faces.ScopeRequest, faces.NewRequestScope()))
	s.Require().NoError(server.RegisterBeans(container))

	views, err := view.NewHandler(s.cfg.View.NumberOfViews)
	s.Require().NoError(err)
	s.sessions = session.NewManager(s.cfg.Session.MaxInactiveInterval, s.cfg.Session.ReaperInterval)
	s.server = server.New(s.cfg, app, container, s.sessions, views)
	s.http = httptest.NewServer(s.server.Routes())

	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	s.client = &http.Client{Jar: jar}
}

func (s *ServerTestSuite) TearDownTest() {
	s.http.Close()
}

func (s *ServerTestSuite) do(method, path string, out any) int {
	req, err := http.NewRequest(method, s.http.URL+path, nil)
	s.Require().NoError(err)
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type viewJSON struct {
	State string `json:"state"`
	Page  string `json:"page"`
}

type beanJSON struct {
	Name  string         `json:"name"`
	View  string         `json:"view"`
	Value map[string]any `json:"value"`
}

func (s *ServerTestSuite) createView(page string) viewJSON {
	var v viewJSON
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/views?page="+page, &v))
	s.Require().NotEmpty(v.State)
	return v
}

func (s *ServerTestSuite) TestHealthz() {
	var body map[string]any
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/healthz", &body))
	s.Equal("ok", body["status"])
}

func (s *ServerTestSuite) TestCounterLivesAsLongAsItsView() {
	first := s.createView("/orders")
	s.Equal(1, s.sessions.Count())

	var bean beanJSON
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/views/"+first.State+"/beans/counter", &bean))
	s.Equal(float64(1), bean.Value["renders"])
	s.Equal(first.State, bean.View)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/views/"+first.State+"/beans/counter", &bean))
	s.Equal(float64(2), bean.Value["renders"])

	second := s.createView("/orders")
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/views/"+second.State+"/beans/counter", &bean))
	s.Equal(float64(1), bean.Value["renders"])

	// The cookie kept both requests in one session.
	s.Equal(1, s.sessions.Count())
}

func (s *ServerTestSuite) TestStateParameter() {
	v := s.createView("/orders")

	var bean beanJSON
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/beans/counter?"+s.cfg.View.StateParam+"="+v.State, &bean))
	s.Equal(v.State, bean.View)

	s.Equal(http.StatusConflict, s.do(http.MethodGet, "/beans/counter", nil))
}

func (s *ServerTestSuite) TestRequestScopedBean() {
	var bean beanJSON
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/beans/requestInfo", &bean))
	s.Equal("GET", bean.Value["method"])
	s.Equal("/beans/requestInfo", bean.Value["path"])
	s.Empty(bean.View)
}

func (s *ServerTestSuite) TestErrors() {
	v := s.createView("/orders")
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/views/"+v.State+"/beans/missing", nil))
	s.Equal(http.StatusGone, s.do(http.MethodGet, "/views/unknown/beans/counter", nil))
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/views", nil))
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/views/"+v.State+"/navigate", nil))
}

func (s *ServerTestSuite) TestNavigate() {
	v := s.createView("/orders")

	var same viewJSON
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/views/"+v.State+"/navigate?page=/orders", &same))
	s.Equal(v.State, same.State)

	var next viewJSON
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/views/"+v.State+"/navigate?page=/invoices", &next))
	s.NotEqual(v.State, next.State)
	s.Equal("/invoices", next.Page)

	s.Equal(http.StatusGone, s.do(http.MethodGet, "/views/"+v.State+"/beans/counter", nil))
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/views/"+next.State+"/beans/counter", nil))
}

func (s *ServerTestSuite) TestDestroyView() {
	v := s.createView("/orders")
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/views/"+v.State, nil))
	s.Equal(http.StatusGone, s.do(http.MethodGet, "/views/"+v.State+"/beans/counter", nil))
	s.Equal(http.StatusGone, s.do(http.MethodDelete, "/views/"+v.State, nil))
}

func (s *ServerTestSuite) TestViewsArePushedOut() {
	oldest := s.createView("/a")
	for _, page := range []string{"/b", "/c", "/d"} {
		s.createView(page)
	}
	s.Equal(http.StatusGone, s.do(http.MethodGet, "/views/"+oldest.State+"/beans/counter", nil))
}

func (s *ServerTestSuite) TestLogout() {
	v := s.createView("/orders")
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/views/"+v.State+"/beans/counter", nil))

	s.Equal(http.StatusNoContent, s.do(http.MethodPost, "/logout", nil))
	s.Equal(0, s.sessions.Count())

	// A new session does not know the views of the old one.
	s.Equal(http.StatusGone, s.do(http.MethodGet, "/views/"+v.State+"/beans/counter", nil))
}

func (s *ServerTestSuite) TestServeShutsDownWithContext() {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.server.Serve(ctx, listener) }()

	s.Eventually(func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("server did not shut down")
	}
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
