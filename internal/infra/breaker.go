package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when a breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig holds configuration for a circuit breaker.
type BreakerConfig struct {
	MaxRequests uint32        // max requests allowed in half-open state
	Interval    time.Duration // cyclic period of the closed state to clear counts
	Timeout     time.Duration // period of the open state before half-open
	MinRequests uint32        // requests needed before the failure ratio counts
	FailureRate float64       // failure ratio that trips the breaker
}

// DefaultBreakerConfig trips after 5 requests with at least half failing.
var DefaultBreakerConfig = BreakerConfig{
	MaxRequests: 1,
	Interval:    time.Minute,
	Timeout:     30 * time.Second,
	MinRequests: 5,
	FailureRate: 0.5,
}

// Breaker names for upstream services.
const (
	BreakerCompletion = "completion"
	BreakerNewsAPI    = "newsapi"
	BreakerScreener   = "screener"
)

// BreakerRegistry manages one circuit breaker per upstream service.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   BreakerConfig
	metrics  *Metrics
	log      zerolog.Logger
}

// NewBreakerRegistry creates a registry. metrics may be nil.
func NewBreakerRegistry(cfg BreakerConfig, metrics *Metrics, logger zerolog.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   cfg,
		metrics:  metrics,
		log:      logger,
	}
}

func (r *BreakerRegistry) breaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg := r.config
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			r.metrics.SetBreakerState(name, stateToInt(to))
		},
	})
	r.breakers[name] = cb
	return cb
}

// Execute runs fn through the named breaker. Open and half-open
// rejections are reported as ErrCircuitOpen.
func (r *BreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.breaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", name, ErrCircuitOpen)
	}
	return result, err
}

// State returns the current state name of a breaker ("closed" if unused).
func (r *BreakerRegistry) State(name string) string {
	return r.breaker(name).State().String()
}

// 0=closed, 1=half-open, 2=open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
