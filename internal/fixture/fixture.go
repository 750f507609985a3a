// Package fixture serves canned JSON resources for trying out and testing
// fetchq against a local server.
//
// Resources are lists of records keyed by name, e.g. "posts". The server
// exposes them as a small REST API and can be told to fail or stall, which
// exercises the coordinator's retry and abort paths:
//
//	GET  /healthz
//	GET  /errors/app        200 response carrying an error marker
//	GET  /{resource}        all records
//	GET  /{resource}/{id}   one record
//	POST /{resource}        append a record
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/fetchq/pkg/errors"
)

// Record is one JSON object served by the fixture server.
type Record = map[string]any

// Resources maps a resource name to its records.
type Resources map[string][]Record

// Default returns the built-in resources: five posts.
func Default() Resources {
	posts := make([]Record, 5)
	for i := range posts {
		id := int64(i + 1)
		posts[i] = Record{
			"id":     id,
			"userId": int64(1),
			"title":  fmt.Sprintf("Post %d", id),
			"body":   fmt.Sprintf("Body of post %d.", id),
		}
	}
	return Resources{"posts": posts}
}

// Load reads resources from a TOML file where every array of tables is a
// resource:
//
//	[[posts]]
//	id = 1
//	title = "hello"
func Load(path string) (Resources, error) {
	var res Resources
	if _, err := toml.DecodeFile(path, &res); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "load fixtures %s", path)
	}
	if len(res) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "fixtures %s define no resources", path)
	}
	return res, nil
}

// Options configures a [Server].
type Options struct {
	Resources Resources

	// FailFirst makes the first N requests to every path fail with 503.
	FailFirst int

	// Delay stalls every resource request. A cancelled request stops waiting.
	Delay time.Duration

	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler

	Logger *log.Logger
}

// Server is the fixture HTTP handler. It is safe for concurrent use.
type Server struct {
	router    chi.Router
	logger    *log.Logger
	failFirst int
	delay     time.Duration

	mu        sync.Mutex
	resources Resources
	requests  map[string]int
}

// New builds a server. Nil resources serve [Default].
func New(opts Options) *Server {
	if opts.Resources == nil {
		opts.Resources = Default()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Server{
		logger:    opts.Logger,
		failFirst: opts.FailFirst,
		delay:     opts.Delay,
		resources: opts.Resources,
		requests:  make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Group(func(fr chi.Router) {
		fr.Use(s.inject)
		fr.Get("/errors/app", s.handleAppError)
		fr.Get("/{resource}", s.handleList)
		fr.Get("/{resource}/{id}", s.handleGet)
		fr.Post("/{resource}", s.handleCreate)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Requests returns how many resource requests path has received.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// Names returns the served resource names in order.
func (s *Server) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.resources))
	for name := range s.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// Middleware
// =============================================================================

// inject counts requests and applies the configured delay and failures.
func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++
		n := s.requests[r.URL.Path]
		s.mu.Unlock()

		if s.delay > 0 {
			t := time.NewTimer(s.delay)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}

		if n <= s.failFirst {
			writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("injected failure %d of %d", n, s.failFirst))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"elapsed", time.Since(start).Round(time.Microsecond),
					"id", chimw.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleAppError(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"error":      "Bad Request",
		"message":    "the fixture server reports an application error",
		"statusCode": http.StatusBadRequest,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "resource")

	s.mu.Lock()
	records, ok := s.resources[name]
	records = append([]Record(nil), records...)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no resource %q", name))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name, id := chi.URLParam(r, "resource"), chi.URLParam(r, "id")

	s.mu.Lock()
	var found Record
	for _, rec := range s.resources[name] {
		if fmt.Sprint(rec["id"]) == id {
			found = rec
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no %s with id %s", name, id))
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "resource")

	var rec Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec == nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}

	s.mu.Lock()
	var maxID int64
	for _, existing := range s.resources[name] {
		if id, ok := asInt(existing["id"]); ok && id > maxID {
			maxID = id
		}
	}
	rec["id"] = maxID + 1
	s.resources[name] = append(s.resources[name], rec)
	s.mu.Unlock()

	s.logger.Debug("record created", "resource", name, "id", rec["id"])
	writeJSON(w, http.StatusCreated, rec)
}

// =============================================================================
// Helpers
// =============================================================================

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends the error payload shape the coordinator understands.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error":      http.StatusText(status),
		"message":    message,
		"statusCode": status,
	})
}

// =============================================================================
// Serving
// =============================================================================

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", addr, err)
	}
	logger.Info("server stopped", "addr", addr)
	return nil
}
