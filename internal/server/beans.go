package server

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/centraunit/faces"
	"github.com/centraunit/faces/internal/logger"
)

// Counter counts the renders of one view.
type Counter struct {
	view    string
	renders atomic.Int64
}

func (c *Counter) OnBoot(ctx context.Context) error {
	logger.DebugF("Counter created for view %s", c.view)
	return nil
}

func (c *Counter) OnShutdown(ctx context.Context) error {
	logger.InfoF("Counter of view %s destroyed after %d renders", c.view, c.renders.Load())
	return nil
}

func (c *Counter) Render(ctx context.Context) any {
	return map[string]int64{"renders": c.renders.Add(1)}
}

// RequestInfo describes the request it was created for.
type RequestInfo struct {
	Method string
	Path   string
}

func (i *RequestInfo) Render(ctx context.Context) any {
	return map[string]string{"method": i.Method, "path": i.Path}
}

// RegisterBeans binds the beans served by the demo application.
func RegisterBeans(container *faces.Container) error {
	if err := container.Bind("counter", faces.Definition{
		Scope: faces.ScopeView,
		Factory: func(ctx context.Context) (any, error) {
			c := &Counter{}
			if fc, ok := faces.CurrentInstance(ctx); ok && fc.ViewRoot() != nil {
				c.view = fc.ViewRoot().StateKey()
			}
			return c, nil
		},
	}); err != nil {
		return err
	}

	return container.Bind("requestInfo", faces.Definition{
		Scope: faces.ScopeRequest,
		Factory: func(ctx context.Context) (any, error) {
			v, err := faces.ResolveContextualObject(ctx, faces.ReferenceRequest)
			if err != nil {
				return nil, err
			}
			info := &RequestInfo{}
			if r, ok := v.(*http.Request); ok {
				info.Method = r.Method
				info.Path = r.URL.Path
			}
			return info, nil
		},
	})
}
