package faces

import "context"

// Well-known contextual references.
const (
	ReferenceRequest = "request"
	ReferenceSession = "session"
	ReferenceView    = "view"
)

// RequestAttributes resolves ambient references against the FacesContext
// of the current request.
type RequestAttributes struct {
	fc *FacesContext
}

// RequestAttributesFrom returns the resolver for the request bound to ctx.
func RequestAttributesFrom(ctx context.Context) (*RequestAttributes, bool) {
	fc, ok := CurrentInstance(ctx)
	if !ok {
		return nil, false
	}
	return &RequestAttributes{fc: fc}, true
}

// ResolveReference returns the request, session or view for the well-known
// keys and falls back to the request attribute stored under key. Unknown
// keys resolve to nil.
func (a *RequestAttributes) ResolveReference(key string) any {
	switch key {
	case ReferenceRequest:
		if r := a.fc.Request(); r != nil {
			return r
		}
		return nil
	case ReferenceSession:
		if s := a.fc.Session(); s != nil {
			return s
		}
		return nil
	case ReferenceView:
		if v := a.fc.ViewRoot(); v != nil {
			return v
		}
		return nil
	}
	v, _ := a.fc.Attributes().Get(key)
	return v
}

// ResolveContextualObject is the ResolveContextualObject shared by every
// scope of this package and the view scope.
func ResolveContextualObject(ctx context.Context, key string) (any, error) {
	attrs, ok := RequestAttributesFrom(ctx)
	if !ok {
		return nil, &AmbientResolutionError{Key: key}
	}
	return attrs.ResolveReference(key), nil
}
