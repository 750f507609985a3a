// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without tying the coordinator
// to a specific backend. Consumers register hooks at startup to receive events
// about fetch cycles, cache operations, and HTTP calls. [Metrics] is the
// bundled Prometheus implementation.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    metrics := observability.NewMetrics(prometheus.NewRegistry())
//	    metrics.Register()
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Query().OnCycleStart(ctx, locator, useCache)
//	// ... attempts ...
//	observability.Query().OnSettle(ctx, locator, "success", duration, nil)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Query Hooks
// =============================================================================

// QueryHooks receives events from fetch coordinators.
type QueryHooks interface {
	// OnCycleStart records the start of a fetch cycle.
	OnCycleStart(ctx context.Context, locator string, useCache bool)

	// OnAttempt records one attempt inside a cycle (1-based).
	OnAttempt(ctx context.Context, locator string, attempt int)

	// OnRetryScheduled records a retry timer being armed.
	OnRetryScheduled(ctx context.Context, locator string, attempt int, delay time.Duration)

	// OnSettle records the end of a cycle with its final status.
	OnSettle(ctx context.Context, locator, status string, duration time.Duration, err error)

	// OnStaleCompletion records a completion discarded because a newer cycle started.
	OnStaleCompletion(ctx context.Context, locator string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a fresh cache hit.
	OnCacheHit(ctx context.Context, namespace string)

	// OnCacheMiss records a miss, including stale and unreadable entries.
	OnCacheMiss(ctx context.Context, namespace string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, namespace string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopQueryHooks is a no-op implementation of QueryHooks.
type NoopQueryHooks struct{}

func (NoopQueryHooks) OnCycleStart(context.Context, string, bool)                     {}
func (NoopQueryHooks) OnAttempt(context.Context, string, int)                         {}
func (NoopQueryHooks) OnRetryScheduled(context.Context, string, int, time.Duration)   {}
func (NoopQueryHooks) OnSettle(context.Context, string, string, time.Duration, error) {}
func (NoopQueryHooks) OnStaleCompletion(context.Context, string)                      {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	queryHooks QueryHooks = NoopQueryHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
	hooksMu    sync.RWMutex
)

// SetQueryHooks registers custom query hooks.
// This should be called once at application startup before any coordinator is built.
func SetQueryHooks(h QueryHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		queryHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Query returns the registered query hooks.
func Query() QueryHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return queryHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	queryHooks = NoopQueryHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
