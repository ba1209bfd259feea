package format

// Deref returns *p, or def when p is nil.
func Deref[T any](p *T, def T) T {
	if p != nil {
		return *p
	}
	return def
}
