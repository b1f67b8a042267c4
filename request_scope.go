package faces

import "context"

// RequestScope stores objects in the request attributes of the current
// FacesContext. Destruction callbacks run when the context is released.
type RequestScope struct{}

// NewRequestScope returns the "request" scope.
func NewRequestScope() *RequestScope {
	return &RequestScope{}
}

func (s *RequestScope) facesContext(ctx context.Context) (*FacesContext, error) {
	fc, ok := CurrentInstance(ctx)
	if !ok {
		return nil, &ContextUnavailableError{What: "FacesContext"}
	}
	return fc, nil
}

func (s *RequestScope) Get(ctx context.Context, name string, factory ObjectFactory) (any, error) {
	fc, err := s.facesContext(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := fc.Attributes().Get(name); ok {
		return v, nil
	}
	v, err := factory()
	if err != nil {
		return nil, err
	}
	fc.Attributes().Put(name, v)
	return v, nil
}

func (s *RequestScope) Remove(ctx context.Context, name string) (any, error) {
	fc, err := s.facesContext(ctx)
	if err != nil {
		return nil, err
	}
	v, _ := fc.Attributes().Remove(name)
	fc.RemoveRequestCallback(name)
	return v, nil
}

func (s *RequestScope) RegisterDestructionCallback(ctx context.Context, name string, callback func()) error {
	if err := ValidateRegistration(name, callback); err != nil {
		return err
	}
	fc, err := s.facesContext(ctx)
	if err != nil {
		return err
	}
	fc.RegisterRequestCallback(name, callback)
	return nil
}

func (s *RequestScope) ResolveContextualObject(ctx context.Context, key string) (any, error) {
	return ResolveContextualObject(ctx, key)
}

func (s *RequestScope) ConversationID(ctx context.Context) (string, error) {
	if _, err := s.facesContext(ctx); err != nil {
		return "", err
	}
	return "", nil
}
