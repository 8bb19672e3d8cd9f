// Package ratelimit provides an adaptive tokens-per-minute limiter that
// wraps a provider.Provider, grounded on
// _teacher_ref/model/middleware/ratelimit.go. The cluster-coordination
// backend is reimplemented against github.com/redis/go-redis/v9 instead of
// the teacher's goa.design/pulse/rmap.Map (see DESIGN.md for why pulse
// itself was dropped); the AIMD policy and the compare-and-swap update of
// the shared budget follow the teacher, but the teacher's subscription that
// pulls external budget changes back into the local limiter is not carried
// over.
package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/agentrt/neuronloop/model"
	"github.com/agentrt/neuronloop/provider"
)

// ClusterStore is the subset of Redis operations the cluster-aware limiter
// needs: read the shared budget, seed it once, and compare-and-swap it.
type ClusterStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetIfNotExists(ctx context.Context, key, value string) error
	CompareAndSwap(ctx context.Context, key, oldValue, newValue string) (bool, error)
}

// RedisStore implements ClusterStore atop a *redis.Client, using a Lua
// compare-and-swap (redis.Client has no native TestAndSet primitive).
type RedisStore struct {
	Client *redis.Client
}

var casScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2])
	return 1
end
return 0
`)

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetIfNotExists(ctx context.Context, key, value string) error {
	return s.Client.SetNX(ctx, key, value, 0).Err()
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key, oldValue, newValue string) (bool, error) {
	res, err := casScript.Run(ctx, s.Client, []string{key}, oldValue, newValue).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// AdaptiveRateLimiter applies an AIMD-style token bucket in front of a
// provider.Provider: it estimates the token cost of each request, blocks
// until capacity is available, and halves its effective budget whenever the
// wrapped provider reports a rate-limit error, recovering gradually
// afterward.
type AdaptiveRateLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM float64
	minTPM     float64
	maxTPM     float64

	recoveryRate float64

	onBackoff func(newTPM float64)
	onProbe   func(newTPM float64)
}

// New constructs a process-local AdaptiveRateLimiter with an initial and
// maximum tokens-per-minute budget.
func New(initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &AdaptiveRateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

// NewClustered constructs an AdaptiveRateLimiter that starts from the
// budget shared under store/key (seeding it with initialTPM when absent)
// and applies each of its own backoff and probe steps to the shared value
// by compare-and-swap. The shared value is read into the local budget only
// here; steps taken by other processes do not change this limiter's
// budget after construction. If the key cannot be seeded
// (store unreachable), it falls back to a process-local limiter rather than
// blocking startup.
func NewClustered(ctx context.Context, store ClusterStore, key string, initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if store == nil || key == "" {
		return New(initialTPM, maxTPM)
	}
	if _, ok, err := store.Get(ctx, key); err != nil || !ok {
		if err := store.SetIfNotExists(ctx, key, strconv.Itoa(int(initialTPM))); err != nil {
			return New(initialTPM, maxTPM)
		}
	}
	sharedTPM := initialTPM
	if cur, ok, err := store.Get(ctx, key); err == nil && ok {
		if v, err := strconv.ParseFloat(cur, 64); err == nil && v > 0 {
			sharedTPM = v
		}
	}
	l := New(sharedTPM, maxTPM)
	min, max, step := l.minTPM, l.maxTPM, l.recoveryRate
	l.onBackoff = func(_ float64) { go reconcile(context.Background(), store, key, -1, min, max, step) }
	l.onProbe = func(_ float64) { go reconcile(context.Background(), store, key, 1, min, max, step) }
	return l
}

// reconcile applies one AIMD step (direction -1 for backoff, +1 for probe)
// against the shared budget using compare-and-swap, retrying a few times on
// contention before giving up.
func reconcile(ctx context.Context, store ClusterStore, key string, direction int, min, max, step float64) {
	const maxAttempts = 3
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for i := 0; i < maxAttempts; i++ {
		cur, ok, err := store.Get(ctx, key)
		if err != nil || !ok {
			return
		}
		v, err := strconv.ParseFloat(cur, 64)
		if err != nil || v <= 0 {
			return
		}
		var next float64
		if direction < 0 {
			next = v * 0.5
			if next < min {
				next = min
			}
		} else {
			next = v + step
			if next > max {
				next = max
			}
		}
		nextStr := strconv.Itoa(int(next))
		swapped, err := store.CompareAndSwap(ctx, key, cur, nextStr)
		if err != nil {
			return
		}
		if swapped {
			return
		}
	}
}

// Wrap returns a provider.Provider that enforces the limiter before
// delegating to next.
func (l *AdaptiveRateLimiter) Wrap(next provider.Provider) provider.Provider {
	return &limited{next: next, limiter: l}
}

type limited struct {
	next    provider.Provider
	limiter *AdaptiveRateLimiter
}

func (l *limited) Complete(ctx context.Context, req model.CompletionRequest) (model.CompletionResponse, error) {
	if err := l.limiter.wait(ctx, req); err != nil {
		return model.CompletionResponse{}, err
	}
	resp, err := l.next.Complete(ctx, req)
	l.limiter.observe(err)
	return resp, err
}

func (l *AdaptiveRateLimiter) wait(ctx context.Context, req model.CompletionRequest) error {
	return l.limiter.WaitN(ctx, estimateTokens(req))
}

func (l *AdaptiveRateLimiter) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if provider.IsRateLimited(err) {
		l.backoff()
	}
}

func (l *AdaptiveRateLimiter) backoff() {
	l.mu.Lock()
	newTPM := l.currentTPM * 0.5
	if newTPM < l.minTPM {
		newTPM = l.minTPM
	}
	if newTPM == l.currentTPM {
		l.mu.Unlock()
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
	cb := l.onBackoff
	l.mu.Unlock()
	if cb != nil {
		cb(newTPM)
	}
}

func (l *AdaptiveRateLimiter) probe() {
	l.mu.Lock()
	newTPM := l.currentTPM + l.recoveryRate
	if newTPM > l.maxTPM {
		newTPM = l.maxTPM
	}
	if newTPM == l.currentTPM {
		l.mu.Unlock()
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
	cb := l.onProbe
	l.mu.Unlock()
	if cb != nil {
		cb(newTPM)
	}
}

// estimateTokens is a cheap heuristic over request text length; it is not a
// tokenizer, only a relative cost signal for the bucket.
func estimateTokens(req model.CompletionRequest) int {
	charCount := 0
	for _, m := range req.Messages {
		for _, b := range m.Content {
			switch v := b.(type) {
			case model.Text:
				charCount += len(v.Value)
			case model.ToolResult:
				for _, item := range v.Content {
					if t, ok := item.(model.ItemText); ok {
						charCount += len(t.Value)
					}
				}
			}
		}
	}
	if charCount <= 0 {
		return 500
	}
	tokens := charCount / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}
