package changelist

// Resolved is a lazily resolved value.
//
// The resolver runs at most once until the value is set or reset.
// Errors are not cached: a failed resolution is retried on the next Get.
type Resolved[T any] struct {
	value T
	ok    bool
}

// Get returns the value, calling resolve if it is not yet known.
func (r *Resolved[T]) Get(resolve func() (T, error)) (T, error) {
	if r.ok {
		return r.value, nil
	}
	v, err := resolve()
	if err != nil {
		var zero T
		return zero, err
	}
	r.value, r.ok = v, true
	return v, nil
}

// Set records a known value.
func (r *Resolved[T]) Set(v T) {
	r.value, r.ok = v, true
}

// Reset forgets the value so that the next Get resolves it again.
func (r *Resolved[T]) Reset() {
	var zero T
	r.value, r.ok = zero, false
}

// Known reports whether the value has been resolved.
func (r *Resolved[T]) Known() bool {
	return r.ok
}
