package query

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fetchq/pkg/cache"
	"github.com/matzehuels/fetchq/pkg/errors"
	"github.com/matzehuels/fetchq/pkg/httputil"
)

// Defaults used when the corresponding option is not given.
const (
	// DefaultMaxRetries is the total number of attempts per cycle, the
	// initial one included.
	DefaultMaxRetries = 3

	// DefaultRetryInterval is the fixed wait between attempts.
	DefaultRetryInterval = 2000 * time.Millisecond

	// DefaultCacheTTL is how long a cache entry counts as fresh.
	DefaultCacheTTL = 600000 * time.Millisecond

	// DefaultNamespace is the cache namespace coordinators open.
	DefaultNamespace = "query"
)

// Option configures a [Coordinator].
type Option func(*options)

type options struct {
	maxRetries    int
	retryInterval time.Duration
	cacheTTL      time.Duration
	namespace     string
	store         cache.Store
	httpClient    *http.Client
	request       httputil.Request
	logger        *log.Logger
	now           func() time.Time
}

func defaultOptions() options {
	return options{
		maxRetries:    DefaultMaxRetries,
		retryInterval: DefaultRetryInterval,
		cacheTTL:      DefaultCacheTTL,
		namespace:     DefaultNamespace,
		request:       httputil.Request{Method: http.MethodGet, Header: make(http.Header)},
		now:           time.Now,
	}
}

func (o *options) validate() error {
	if o.maxRetries < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "max retries must be at least 1, got %d", o.maxRetries)
	}
	if o.retryInterval < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "retry interval cannot be negative: %s", o.retryInterval)
	}
	if o.cacheTTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache ttl cannot be negative: %s", o.cacheTTL)
	}
	if err := errors.ValidateNamespace(o.namespace); err != nil {
		return err
	}
	if o.now == nil {
		return errors.New(errors.ErrCodeInvalidInput, "clock cannot be nil")
	}
	return nil
}

// WithMaxRetries sets the total number of attempts per cycle. A value of 1
// disables retries.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

// WithRetryInterval sets the fixed wait between attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) { o.retryInterval = d }
}

// WithCacheTTL sets how long a cache entry counts as fresh. A zero TTL makes
// every entry stale, so the cache is written but never served.
func WithCacheTTL(d time.Duration) Option {
	return func(o *options) { o.cacheTTL = d }
}

// WithNamespace sets the cache namespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithStore sets the response store. The default is [cache.DefaultStore].
func WithStore(s cache.Store) Option {
	return func(o *options) { o.store = s }
}

// WithCache wraps a byte-level backend as the response store.
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.store = cache.NewStore(c) }
}

// WithHTTPClient sets the client used for network attempts.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithMethod sets the request method. The default is GET.
func WithMethod(method string) Option {
	return func(o *options) { o.request.Method = method }
}

// WithHeader adds a request header. It may be given more than once.
func WithHeader(key, value string) Option {
	return func(o *options) { o.request.Header.Add(key, value) }
}

// WithBody sets the request body sent with every attempt.
func WithBody(body []byte) Option {
	return func(o *options) { o.request.Body = body }
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now for freshness checks and cache write times.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
