package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/matzehuels/fetchq/pkg/errors"
	"github.com/matzehuels/fetchq/pkg/observability"
)

// QueryDateHeader records when an entry was written, as an HTTP date in UTC.
const QueryDateHeader = "Query-Date"

// Store opens namespaced response buckets.
type Store interface {
	Open(ctx context.Context, namespace string) (Bucket, error)
}

// Bucket is a namespace of response entries keyed by locator.
type Bucket interface {
	// Match returns the entry stored under key, if any.
	Match(ctx context.Context, key string) (*Entry, bool, error)

	// Put stores entry under key, replacing any previous entry.
	Put(ctx context.Context, key string, entry *Entry) error
}

// Entry is a cached response body with its metadata headers.
type Entry struct {
	Body   []byte      `json:"body"`
	Header http.Header `json:"header,omitempty"`
}

// NewEntry creates an entry for body stamped with the write time now.
func NewEntry(body []byte, now time.Time) *Entry {
	h := make(http.Header)
	h.Set(QueryDateHeader, now.UTC().Format(http.TimeFormat))
	return &Entry{Body: body, Header: h}
}

// Date returns the write time recorded in the entry.
func (e *Entry) Date() (time.Time, error) {
	raw := e.Header.Get(QueryDateHeader)
	if raw == "" {
		return time.Time{}, errors.New(errors.ErrCodeCache, "entry has no %s header", QueryDateHeader)
	}
	t, err := http.ParseTime(raw)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrCodeCache, err, "parse %s header", QueryDateHeader)
	}
	return t, nil
}

// Fresh reports whether the entry was written less than ttl before now.
// Entries without a readable write time are never fresh.
func (e *Entry) Fresh(now time.Time, ttl time.Duration) bool {
	written, err := e.Date()
	if err != nil {
		return false
	}
	return now.Sub(written) < ttl
}

// ResponseStore implements [Store] on top of a byte-level [Cache].
type ResponseStore struct {
	backend Cache
}

// NewStore wraps backend as a response store. A nil backend disables caching.
func NewStore(backend Cache) *ResponseStore {
	if backend == nil {
		backend = NewNullCache()
	}
	return &ResponseStore{backend: backend}
}

// Backend returns the wrapped cache.
func (s *ResponseStore) Backend() Cache { return s.backend }

// Open returns the bucket for namespace.
func (s *ResponseStore) Open(ctx context.Context, namespace string) (Bucket, error) {
	if err := errors.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	return &responseBucket{backend: s.backend, namespace: namespace}, nil
}

// Close closes the backend.
func (s *ResponseStore) Close() error {
	return s.backend.Close()
}

type responseBucket struct {
	backend   Cache
	namespace string
}

func (b *responseBucket) key(k string) string {
	return "response:" + b.namespace + ":" + k
}

func (b *responseBucket) Match(ctx context.Context, key string) (*Entry, bool, error) {
	data, ok, err := b.backend.Get(ctx, b.key(key))
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeCache, err, "read %s", key)
	}
	if !ok {
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Unreadable entries behave like misses; the next Put overwrites them.
		return nil, false, nil
	}
	return &entry, true, nil
}

func (b *responseBucket) Put(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "encode %s", key)
	}
	if err := b.backend.Set(ctx, b.key(key), data, 0); err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "write %s", key)
	}
	observability.Cache().OnCacheSet(ctx, b.namespace, len(entry.Body))
	return nil
}

var (
	defaultStore     *ResponseStore
	defaultStoreOnce sync.Once
)

// DefaultStore returns the process-wide in-memory response store.
// Coordinators built without an explicit store share it.
func DefaultStore() *ResponseStore {
	defaultStoreOnce.Do(func() {
		defaultStore = NewStore(NewMemoryCache())
	})
	return defaultStore
}

var _ Store = (*ResponseStore)(nil)
