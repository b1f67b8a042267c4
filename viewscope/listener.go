package viewscope

import (
	"context"
	"strings"

	"github.com/centraunit/faces"
)

// TerminationListener fires the destruction callbacks stored in a view map
// that is about to be destroyed. It keeps no state: one listener serves
// every view of the application.
type TerminationListener struct{}

// IsListenerForSource accepts view roots only.
func (l *TerminationListener) IsListenerForSource(source any) bool {
	_, ok := source.(*faces.ViewRoot)
	return ok
}

// ProcessEvent fires the callbacks found under the reserved key prefix, then
// compacts the session registry of the current request, if there is one.
// Without a request the registry is compacted on its next registration.
func (l *TerminationListener) ProcessEvent(ctx context.Context, event faces.SystemEvent) error {
	root, ok := event.Source().(*faces.ViewRoot)
	if !ok {
		return nil
	}

	if viewMap := root.ViewMap(false); viewMap != nil {
		viewMap.Range(func(name string, value any) bool {
			if !strings.HasPrefix(name, DestructionCallbackNamePrefix) {
				return true
			}
			if cb, ok := value.(*DestructionCallback); ok {
				cb.FireFromView()
			}
			return true
		})
	}

	fc, ok := faces.CurrentInstance(ctx)
	if !ok || fc.Session() == nil {
		return nil
	}
	if v, ok := fc.Session().Attribute(RegistryAttribute); ok {
		if registry, ok := v.(*SessionRegistry); ok {
			registry.Compact()
		}
	}
	return nil
}
