package tracker

import (
	"context"
	"fmt"
	"io"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/config"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open builds the backend named by cfg.Backend. The memory backend's
// janitor runs until ctx is done.
func Open(ctx context.Context, cfg config.TrackerConfig, redisCfg config.RedisConfig) (Tracker, io.Closer, error) {
	switch cfg.Backend {
	case "", "memory":
		m := NewMemoryTracker(cfg.Retention)
		go m.Run(ctx, cfg.SweepInterval)
		return m, closerFunc(func() error { return nil }), nil
	case "redis":
		r, err := NewRedisTracker(redisCfg.Host, redisCfg.Port, redisCfg.Password, redisCfg.DB, cfg.Retention)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown tracker backend %q", cfg.Backend)
	}
}
