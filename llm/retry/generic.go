package retry

import "context"

// DoWithResultTyped is a type-safe generic wrapper around Retryer.DoWithResult.
//
// Usage:
//
//	img, err := retry.DoWithResultTyped(r, ctx, func() (*image.GenerateResponse, error) {
//	    return provider.Generate(ctx, req)
//	})
func DoWithResultTyped[T any](r Retryer, ctx context.Context, fn func() (T, error)) (T, error) {
	result, err := r.DoWithResult(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := result.(T)
	return v, nil
}
