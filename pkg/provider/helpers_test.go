package provider

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/search-pager/pkg/ratelimit"
)

func newQuietLimiter() *ratelimit.Limiter {
	cfg := ratelimit.DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.MinJitter, cfg.MaxJitter = 0, 0
	return ratelimit.NewLimiter(cfg, zerolog.Nop())
}
