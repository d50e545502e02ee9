package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// DefaultRatePerMinute is the default generation request budget.
const DefaultRatePerMinute = 60

type rateLimited struct {
	Generator
	limiter *rate.Limiter
}

// RateLimited wraps gen so that at most perMinute calls start per minute, with a burst of one.
// Generate blocks until a token is free or ctx ends. perMinute <= 0 returns gen unchanged.
func RateLimited(gen Generator, perMinute int) Generator {
	if perMinute <= 0 {
		return gen
	}
	return &rateLimited{
		Generator: gen,
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1),
	}
}

func (r *rateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.Generator.Generate(ctx, prompt)
}
