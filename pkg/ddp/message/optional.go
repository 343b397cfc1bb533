package message

// Optional holds a value that is either present or absent.
//
// A present value may itself be empty or nil; presence is tracked
// separately from the value.
type Optional[T any] struct {
	value   T
	present bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// IsPresent reports whether the value is present.
func (o Optional[T]) IsPresent() bool {
	return o.present
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// Value returns the value, or ErrNotPresent if it is absent.
func (o Optional[T]) Value() (T, error) {
	if !o.present {
		var zero T
		return zero, ErrNotPresent
	}
	return o.value, nil
}

// OrElse returns the value if present and def otherwise.
func (o Optional[T]) OrElse(def T) T {
	if !o.present {
		return def
	}
	return o.value
}

func mapOptional[T any](o Optional[T], f func(T) T) Optional[T] {
	if !o.present {
		return o
	}
	return Some(f(o.value))
}
