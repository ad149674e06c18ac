package throttle

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const keyPrefix = "throttle:"

// Throttle admits at most one trade per symbol per window. When the shared
// store is unreachable it answers from a process-local store.
type Throttle struct {
	Store    Store
	Fallback *MemoryStore
	Logger   *zap.Logger
}

func New(store Store, logger *zap.Logger) *Throttle {
	return &Throttle{Store: store, Fallback: NewMemoryStore(), Logger: logger}
}

func Key(symbol string) string {
	return keyPrefix + strings.TrimSpace(symbol)
}

// Allow records now for symbol and returns true when no record younger than
// window exists; otherwise it returns false and leaves the record untouched.
func (t *Throttle) Allow(ctx context.Context, symbol string, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	if t == nil {
		return true
	}
	key := Key(symbol)
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	if t.Store != nil {
		ok, err := t.Store.SetNX(ctx, key, stamp, window)
		if err == nil {
			return ok
		}
		if t.Logger != nil {
			t.Logger.Warn("throttle store unavailable, using local window",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
		}
	}
	if t.Fallback == nil {
		t.Fallback = NewMemoryStore()
	}
	ok, _ := t.Fallback.SetNX(ctx, key, stamp, window)
	return ok
}

// Release forgets the window for symbol so an attempt that failed after
// Allow does not throttle its own retry.
func (t *Throttle) Release(ctx context.Context, symbol string) {
	if t == nil {
		return
	}
	key := Key(symbol)
	if t.Store != nil {
		if err := t.Store.Del(ctx, key); err != nil && t.Logger != nil {
			t.Logger.Warn("throttle release failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	if t.Fallback != nil {
		_ = t.Fallback.Del(ctx, key)
	}
}
