package cache

// ScopedKeyer wraps a Keyer with a prefix so that several deployments
// (or tenants) can share one Redis without colliding.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "mockupkit:staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RenderKey generates a prefixed render key.
func (k *ScopedKeyer) RenderKey(templateHash, replacementHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(templateHash, replacementHash, opts)
}

// DocumentKey generates a prefixed document key.
func (k *ScopedKeyer) DocumentKey(templateHash string) string {
	return k.prefix + k.inner.DocumentKey(templateHash)
}
