package cache

import "context"

// GetOrLoad returns the cached value for key or calls load and caches its result.
// Errors are never cached. A nil partition always loads.
func GetOrLoad[T any](ctx context.Context, p *Partition, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if p != nil {
		if cached, ok := p.Get(key); ok {
			if v, ok := cached.(T); ok {
				return v, nil
			}
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if p != nil {
		p.Set(key, v)
	}
	return v, nil
}
