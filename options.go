package crowcache

import (
	"reflect"

	"github.com/Borislavv/go-crow-cache/model"
)

type AddOption func(o *addOptions)

type addOptions struct {
	frequency int64
	refresh   any // model.Refresher[V] of the cache it is passed to
}

// WithRefresh makes the entry refresh itself on expiry instead of leaving the active tier.
// If fn fails, the previous value is kept and the timer restarts.
func WithRefresh[V any](fn model.Refresher[V]) AddOption {
	return func(o *addOptions) { o.refresh = fn }
}

// WithFrequency seeds the entry frequency, e.g. when importing entries from elsewhere.
// Values below 1 are raised to 1.
func WithFrequency(n int64) AddOption {
	return func(o *addOptions) { o.frequency = n }
}

func applyAddOptions[V any](opts []AddOption) (frequency int64, refresh model.Refresher[V]) {
	o := addOptions{frequency: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if fn, ok := o.refresh.(model.Refresher[V]); ok && fn != nil {
		refresh = fn
	}
	return o.frequency, refresh
}

// isNil reports whether v is a nil interface, pointer, map, slice, func or chan.
func isNil[V any](v V) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
