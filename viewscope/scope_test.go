package viewscope_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/centraunit/faces"
	"github.com/centraunit/faces/mock"
	"github.com/centraunit/faces/session"
	"github.com/centraunit/faces/viewscope"
)

type ScopeTestSuite struct {
	suite.Suite
	app      *faces.Application
	manager  *session.Manager
	session  *session.Session
	scope    *viewscope.Scope
	recorder *mock.CallbackRecorder
}

func (s *ScopeTestSuite) SetupTest() {
	s.app = faces.NewApplication()
	s.manager = session.NewManager(time.Hour, time.Minute)
	s.session = s.manager.Create()
	s.scope = viewscope.New()
	s.recorder = mock.NewCallbackRecorder()
}

// request returns a faces context of the test session showing root.
func (s *ScopeTestSuite) request(root *faces.ViewRoot) *faces.FacesContext {
	fc := faces.NewFacesContext(context.Background(), s.app, s.session, nil)
	fc.SetViewRoot(root)
	return fc
}

func (s *ScopeTestSuite) endView(fc *faces.FacesContext, root *faces.ViewRoot) {
	s.Require().NoError(s.app.PublishEvent(fc, faces.NewViewMapEvent(faces.PreDestroyViewMap, root)))
	root.Discard()
}

func (s *ScopeTestSuite) registry() *viewscope.SessionRegistry {
	v, ok := s.session.Attribute(viewscope.RegistryAttribute)
	s.Require().True(ok)
	return v.(*viewscope.SessionRegistry)
}

func (s *ScopeTestSuite) TestGetCreatesOncePerView() {
	fc := s.request(faces.NewViewRoot("v1", "/orders"))
	calls := 0
	factory := func() (any, error) {
		calls++
		return &mock.Counter{}, nil
	}

	first, err := s.scope.Get(fc, "counter", factory)
	s.Require().NoError(err)
	second, err := s.scope.Get(fc, "counter", factory)
	s.Require().NoError(err)

	s.Same(first, second)
	s.Equal(1, calls)

	other := s.request(faces.NewViewRoot("v2", "/orders"))
	third, err := s.scope.Get(other, "counter", factory)
	s.Require().NoError(err)
	s.NotSame(first, third)
	s.Equal(2, calls)
}

func (s *ScopeTestSuite) TestGetFactoryError() {
	fc := s.request(faces.NewViewRoot("v1", "/orders"))
	boom := errors.New("boom")

	_, err := s.scope.Get(fc, "counter", func() (any, error) { return nil, boom })
	s.ErrorIs(err, boom)

	_, ok := fc.ViewRoot().ViewMap(false).Get("counter")
	s.False(ok)
}

func (s *ScopeTestSuite) TestContextErrorsAreDistinct() {
	factory := func() (any, error) { return 1, nil }

	_, err := s.scope.Get(context.Background(), "x", factory)
	var unavailable *faces.ContextUnavailableError
	s.Require().ErrorAs(err, &unavailable)
	s.Equal("FacesContext", unavailable.What)

	_, err = s.scope.Get(s.request(nil), "x", factory)
	s.Require().ErrorAs(err, &unavailable)
	s.Equal("ViewRoot", unavailable.What)

	root := faces.NewViewRoot("gone", "/orders")
	root.Discard()
	_, err = s.scope.Get(s.request(root), "x", factory)
	var mapUnavailable *faces.ViewMapUnavailableError
	s.Require().ErrorAs(err, &mapUnavailable)
	s.Equal("gone", mapUnavailable.ViewID)
	s.False(errors.As(err, &unavailable))

	_, err = s.scope.Remove(context.Background(), "x")
	s.ErrorAs(err, &unavailable)
	err = s.scope.RegisterDestructionCallback(context.Background(), "x", func() {})
	s.ErrorAs(err, &unavailable)
}

func (s *ScopeTestSuite) TestInvalidRegistration() {
	fc := s.request(faces.NewViewRoot("v1", "/orders"))
	var invalid *faces.InvalidRegistrationError

	s.ErrorAs(s.scope.RegisterDestructionCallback(fc, "", func() {}), &invalid)
	s.ErrorAs(s.scope.RegisterDestructionCallback(fc, "bean", nil), &invalid)
}

func (s *ScopeTestSuite) TestViewEndFiresOnce() {
	root := faces.NewViewRoot("v1", "/orders")
	fc := s.request(root)
	s.Require().NoError(s.scope.RegisterDestructionCallback(fc, "bean", s.recorder.Callback("bean")))

	s.endView(fc, root)
	s.Equal(1, s.recorder.Count("bean"))
	s.Equal(0, s.registry().Len(), "the listener compacts the session registry")

	s.session.Invalidate()
	s.Equal(1, s.recorder.Count("bean"))
}

func (s *ScopeTestSuite) TestSessionEndFiresLiveViews() {
	root := faces.NewViewRoot("v1", "/orders")
	fc := s.request(root)
	s.Require().NoError(s.scope.RegisterDestructionCallback(fc, "bean", s.recorder.Callback("bean")))

	s.session.Invalidate()
	s.Equal(1, s.recorder.Count("bean"))

	// The view outlives its session in memory; ending it later is a no-op.
	s.endView(faces.NewFacesContext(context.Background(), s.app, nil, nil), root)
	s.Equal(1, s.recorder.Count("bean"))
}

func (s *ScopeTestSuite) TestViewEndLeavesOtherViews() {
	first := faces.NewViewRoot("v1", "/orders")
	second := faces.NewViewRoot("v2", "/orders")
	fc1 := s.request(first)
	fc2 := s.request(second)
	s.Require().NoError(s.scope.RegisterDestructionCallback(fc1, "bean", s.recorder.Callback("first")))
	s.Require().NoError(s.scope.RegisterDestructionCallback(fc2, "bean", s.recorder.Callback("second")))

	s.endView(fc1, first)
	s.Equal(1, s.recorder.Count("first"))
	s.Equal(0, s.recorder.Count("second"))
	s.Equal(1, s.registry().Pending())

	s.session.Invalidate()
	s.Equal(1, s.recorder.Count("first"))
	s.Equal(1, s.recorder.Count("second"))
}

func (s *ScopeTestSuite) TestRemoveDropsCallbackWithoutFiring() {
	root := faces.NewViewRoot("v1", "/orders")
	fc := s.request(root)
	counter := &mock.Counter{}
	_, err := s.scope.Get(fc, "counter", func() (any, error) { return counter, nil })
	s.Require().NoError(err)
	s.Require().NoError(s.scope.RegisterDestructionCallback(fc, "counter", s.recorder.Callback("counter")))

	removed, err := s.scope.Remove(fc, "counter")
	s.Require().NoError(err)
	s.Same(counter, removed)
	s.Equal(0, s.registry().Len())

	_, ok := root.ViewMap(false).Get(viewscope.DestructionCallbackNamePrefix + "counter")
	s.False(ok)

	s.endView(fc, root)
	s.session.Invalidate()
	s.Equal(0, s.recorder.Count("counter"))
}

func (s *ScopeTestSuite) TestRemoveWithoutSessionLeavesViewMap() {
	root := faces.NewViewRoot("v1", "/orders")
	fc := faces.NewFacesContext(context.Background(), s.app, nil, nil)
	fc.SetViewRoot(root)
	viewMap := root.ViewMap(true)
	viewMap.Put("counter", &mock.Counter{})
	viewMap.Put(viewscope.DestructionCallbackNamePrefix+"counter", viewscope.NewDestructionCallback("counter", s.recorder.Callback("counter")))

	removed, err := s.scope.Remove(fc, "counter")
	var unavailable *faces.ContextUnavailableError
	s.Require().ErrorAs(err, &unavailable)
	s.Equal("session", unavailable.What)
	s.Nil(removed)

	_, ok := viewMap.Get("counter")
	s.True(ok)
	_, ok = viewMap.Get(viewscope.DestructionCallbackNamePrefix + "counter")
	s.True(ok)
}

func (s *ScopeTestSuite) TestRemoveMissing() {
	fc := s.request(faces.NewViewRoot("v1", "/orders"))
	removed, err := s.scope.Remove(fc, "nothing")
	s.NoError(err)
	s.Nil(removed)
}

func (s *ScopeTestSuite) TestReRegistrationReplaces() {
	root := faces.NewViewRoot("v1", "/orders")
	fc := s.request(root)
	s.Require().NoError(s.scope.RegisterDestructionCallback(fc, "bean", s.recorder.Callback("old")))
	s.Require().NoError(s.scope.RegisterDestructionCallback(fc, "bean", s.recorder.Callback("new")))
	s.Equal(1, s.registry().Len())

	s.endView(fc, root)
	s.session.Invalidate()
	s.Equal(0, s.recorder.Count("old"))
	s.Equal(1, s.recorder.Count("new"))
}

func (s *ScopeTestSuite) TestListenerSubscribedOnce() {
	for i, id := range []string{"v1", "v2", "v3"} {
		fc := s.request(faces.NewViewRoot(id, "/orders"))
		s.Require().NoError(s.scope.RegisterDestructionCallback(fc, "bean", s.recorder.Callback(id)))
		s.Len(s.app.Listeners(faces.PreDestroyViewMap), 1, "after registration %d", i)
	}
	s.Equal(faces.SystemEventListener(s.scope.Listener()), s.app.Listeners(faces.PreDestroyViewMap)[0])
}

func (s *ScopeTestSuite) TestListenerAcceptsViewRootsOnly() {
	l := s.scope.Listener()
	s.True(l.IsListenerForSource(faces.NewViewRoot("v1", "/orders")))
	s.False(l.IsListenerForSource("v1"))
	s.False(l.IsListenerForSource(nil))
}

func (s *ScopeTestSuite) TestListenerIgnoresPlainEntries() {
	root := faces.NewViewRoot("v1", "/orders")
	fc := s.request(root)
	root.ViewMap(true).Put(viewscope.DestructionCallbackNamePrefix+"odd", "not a callback")
	root.ViewMap(true).Put("plain", viewscope.NewDestructionCallback("plain", s.recorder.Callback("plain")))

	event := faces.NewViewMapEvent(faces.PreDestroyViewMap, root)
	s.NotPanics(func() { s.NoError(s.scope.Listener().ProcessEvent(fc, event)) })
	s.Equal(0, s.recorder.Total())
}

func (s *ScopeTestSuite) TestListenerWithoutRequestSkipsCompaction() {
	root := faces.NewViewRoot("v1", "/orders")
	fc := s.request(root)
	s.Require().NoError(s.scope.RegisterDestructionCallback(fc, "bean", s.recorder.Callback("bean")))

	err := s.scope.Listener().ProcessEvent(context.Background(), faces.NewViewMapEvent(faces.PreDestroyViewMap, root))
	s.Require().NoError(err)
	s.Equal(1, s.recorder.Count("bean"))
	s.Equal(1, s.registry().Len())
	s.Equal(0, s.registry().Pending())
}

func (s *ScopeTestSuite) TestRegistrationWithoutSession() {
	fc := faces.NewFacesContext(context.Background(), s.app, nil, nil)
	fc.SetViewRoot(faces.NewViewRoot("v1", "/orders"))

	var unavailable *faces.ContextUnavailableError
	s.Require().ErrorAs(s.scope.RegisterDestructionCallback(fc, "bean", func() {}), &unavailable)
	s.Equal("session", unavailable.What)
}

func (s *ScopeTestSuite) TestRegistrationAfterSessionEnd() {
	fc := s.request(faces.NewViewRoot("v1", "/orders"))
	s.session.Invalidate()
	s.ErrorIs(s.scope.RegisterDestructionCallback(fc, "bean", func() {}), session.ErrInvalidated)
}

func (s *ScopeTestSuite) TestResolveContextualObject() {
	_, err := s.scope.ResolveContextualObject(context.Background(), faces.ReferenceSession)
	var ambient *faces.AmbientResolutionError
	s.ErrorAs(err, &ambient)

	fc := s.request(faces.NewViewRoot("v1", "/orders"))
	v, err := s.scope.ResolveContextualObject(fc, faces.ReferenceSession)
	s.Require().NoError(err)
	s.Same(s.session, v)

	v, err = s.scope.ResolveContextualObject(fc, "unknown")
	s.NoError(err)
	s.Nil(v)
}

func (s *ScopeTestSuite) TestConversationID() {
	id, err := s.scope.ConversationID(s.request(nil))
	s.NoError(err)
	s.Empty(id)

	_, err = s.scope.ConversationID(context.Background())
	var unavailable *faces.ContextUnavailableError
	s.ErrorAs(err, &unavailable)
}

func (s *ScopeTestSuite) TestConcurrentViewAndSessionEndFireOnce() {
	for i := 0; i < 200; i++ {
		sess := s.manager.Create()
		root := faces.NewViewRoot("v", "/orders")
		fc := faces.NewFacesContext(context.Background(), s.app, sess, nil)
		fc.SetViewRoot(root)

		recorder := mock.NewCallbackRecorder()
		for _, name := range []string{"a", "b", "c"} {
			s.Require().NoError(s.scope.RegisterDestructionCallback(fc, name, recorder.Callback(name)))
		}

		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_ = s.app.PublishEvent(fc, faces.NewViewMapEvent(faces.PreDestroyViewMap, root))
		}()
		go func() {
			defer wg.Done()
			<-start
			sess.Invalidate()
		}()
		close(start)
		wg.Wait()

		s.Require().Equal(3, recorder.Total(), "iteration %d", i)
		for _, name := range []string{"a", "b", "c"} {
			s.Require().Equal(1, recorder.Count(name), "iteration %d bean %s", i, name)
		}
	}
}

func (s *ScopeTestSuite) TestViewScopedCounterThroughContainer() {
	container := faces.NewContainer()
	s.Require().NoError(container.RegisterScope(faces.ScopeView, s.scope))
	counters := &mock.CounterFactory{}
	s.Require().NoError(container.Bind("counter", faces.Definition{Scope: faces.ScopeView, Factory: counters.Factory}))

	root := faces.NewViewRoot("v1", "/orders")
	for i := 0; i < 3; i++ {
		fc := s.request(root)
		counter, err := faces.Resolve[*mock.Counter](fc, container, "counter")
		s.Require().NoError(err)
		counter.Increment()
		fc.Release()
	}

	s.Require().Len(counters.Created(), 1)
	counter := counters.Created()[0]
	s.Equal(int64(3), counter.Value())
	s.Equal(1, counter.BootCount())

	s.endView(s.request(root), root)
	s.Equal(1, counter.ShutdownCount())

	s.session.Invalidate()
	s.Equal(1, counter.ShutdownCount())
}

func (s *ScopeTestSuite) TestBeanShutDownWhenRegistrationFails() {
	container := faces.NewContainer()
	s.Require().NoError(container.RegisterScope(faces.ScopeView, s.scope))
	counters := &mock.CounterFactory{}
	s.Require().NoError(container.Bind("counter", faces.Definition{Scope: faces.ScopeView, Factory: counters.Factory}))
	s.session.Invalidate()

	_, err := container.Resolve(s.request(faces.NewViewRoot("v1", "/orders")), "counter")
	s.ErrorIs(err, session.ErrInvalidated)

	s.Require().Len(counters.Created(), 1)
	counter := counters.Created()[0]
	s.Equal(1, counter.BootCount())
	s.Equal(1, counter.ShutdownCount())
}

func TestScopeSuite(t *testing.T) {
	suite.Run(t, new(ScopeTestSuite))
}
