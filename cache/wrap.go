package cache

import (
	"context"
	"reflect"
	"time"

	"go.uber.org/zap"
)

// Options controls one wrapped call.
//
// Key resolution order: KeyFunc, then Key, then the derived
// Scope::Method::args key.
//
// TTL 0 takes Config.TTL. Stores may cap it: the in-process store never keeps
// an entry longer than its own configured TTL.
type Options struct {
	Scope   string
	Method  string
	TTL     time.Duration
	Key     string
	KeyFunc func(args ...any) string
}

// Wrap returns fn with cache-aside reads in front of it.
//
// Results that are nil (pointer, map, slice, interface) are treated as
// absent and never stored; zero and empty values are cached like any other.
// Store and codec failures are logged and the call goes through to fn.
// Errors from fn are returned unchanged and nothing is stored.
func Wrap[A, V any](c *Cacher, opts Options, fn func(context.Context, A) (V, error)) func(context.Context, A) (V, error) {
	return func(ctx context.Context, a A) (V, error) {
		return lookup(ctx, c, opts, []any{a}, func(ctx context.Context) (V, error) {
			return fn(ctx, a)
		})
	}
}

// Wrap2 is Wrap for two-argument calls.
func Wrap2[A, B, V any](c *Cacher, opts Options, fn func(context.Context, A, B) (V, error)) func(context.Context, A, B) (V, error) {
	return func(ctx context.Context, a A, b B) (V, error) {
		return lookup(ctx, c, opts, []any{a, b}, func(ctx context.Context) (V, error) {
			return fn(ctx, a, b)
		})
	}
}

// Wrap3 is Wrap for three-argument calls.
func Wrap3[A, B, C, V any](c *Cacher, opts Options, fn func(context.Context, A, B, C) (V, error)) func(context.Context, A, B, C) (V, error) {
	return func(ctx context.Context, a A, b B, cc C) (V, error) {
		return lookup(ctx, c, opts, []any{a, b, cc}, func(ctx context.Context) (V, error) {
			return fn(ctx, a, b, cc)
		})
	}
}

func lookup[V any](ctx context.Context, c *Cacher, opts Options, args []any, call func(context.Context) (V, error)) (V, error) {
	if !c.Enabled() {
		return call(ctx)
	}

	key := c.resolveKey(opts, args)
	cached, ok, err := Get[V](ctx, c, key)
	switch {
	case err != nil:
		c.degraded("cache lookup failed", key, err)
	case ok:
		return cached, nil
	}

	result, err := call(ctx)
	if err != nil || isAbsent(result) {
		return result, err
	}

	if err := Set(ctx, c, key, result, opts.TTL); err != nil {
		c.degraded("cache write failed", key, err)
	}
	return result, nil
}

func (c *Cacher) resolveKey(opts Options, args []any) string {
	switch {
	case opts.KeyFunc != nil:
		return opts.KeyFunc(args...)
	case opts.Key != "":
		return opts.Key
	}
	return c.Key(opts.Scope, opts.Method, args...)
}

func (c *Cacher) degraded(msg, key string, err error) {
	c.stats.errors.Inc()
	c.logger.Warn(msg, zap.String("key", key), zap.Error(err))
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
