package remote

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/matheus3301/plated/internal/bus"
	"go.uber.org/zap"
)

// WithFallback runs call. A non-nil result is returned as real data. When
// the call fails with a qualifying failure (Unavailable, or AuthFailure in
// offline mode) or yields a nil result, fallback is returned instead. Any
// other error is returned unchanged.
func WithFallback[T any](ctx context.Context, c *Client, name string, call func(context.Context) (T, error), fallback T) (T, error) {
	return withFallback(ctx, c, name, call, func() T { return fallback })
}

// Read performs a GET through Call. On a qualifying failure it answers with
// the last cached response for the same endpoint, then with fallback.
func Read[T any](ctx context.Context, c *Client, name string, req Request, fallback T) (T, error) {
	call := func(ctx context.Context) (T, error) {
		var out T
		err := c.Call(ctx, req, &out)
		return out, err
	}
	return withFallback(ctx, c, name, call, func() T {
		if v, ok := cached[T](c, req.Key()); ok {
			c.logger.Debug("fallback from cache", zap.String("call", name), zap.String("key", req.Key()))
			return v
		}
		return fallback
	})
}

func withFallback[T any](ctx context.Context, c *Client, name string, call func(context.Context) (T, error), fallback func() T) (T, error) {
	v, err := call(ctx)
	if err == nil && !isNil(v) {
		c.logger.Debug("real data", zap.String("call", name))
		return v, nil
	}
	if err != nil && !c.qualifies(err) {
		return v, err
	}

	fields := []zap.Field{zap.String("call", name)}
	if err != nil {
		fields = append(fields, zap.String("kind", string(Classify(err))), zap.Error(err))
	} else {
		fields = append(fields, zap.Bool("nil_result", true))
	}
	c.logger.Info("fallback used", fields...)
	c.bus.Publish(bus.NewEvent(bus.KindFallbackUsed, map[string]string{"call": name}))
	return fallback(), nil
}

func cached[T any](c *Client, key string) (T, bool) {
	var zero T
	if c.cache == nil {
		return zero, false
	}
	entry, err := c.cache.GetCache(key)
	if err != nil {
		c.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	if entry == nil {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(entry.Body, &v); err != nil || isNil(v) {
		return zero, false
	}
	return v, true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
