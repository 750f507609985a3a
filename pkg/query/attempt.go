package query

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matzehuels/fetchq/pkg/cache"
	"github.com/matzehuels/fetchq/pkg/observability"
)

var tracer = otel.Tracer("github.com/matzehuels/fetchq/pkg/query")

// attempt runs attempt n of cy without holding the lock and reports the
// outcome to complete.
func (c *Coordinator[T]) attempt(cy *cycle, n int) {
	ctx, span := tracer.Start(cy.ctx, "query.attempt", trace.WithAttributes(
		attribute.String("query.locator", cy.locator),
		attribute.Int("query.attempt", n),
		attribute.Int64("query.cycle", int64(cy.seq)),
		attribute.Bool("query.bypass_cache", cy.bypass),
	))
	defer span.End()

	observability.Query().OnAttempt(ctx, cy.locator, n)

	if !cy.bypass {
		if resp, ok := c.fromCache(ctx, cy.locator); ok {
			span.SetAttributes(attribute.Bool("query.cached", true))
			c.complete(cy, resp, nil)
			return
		}
	}

	resp, failure := c.fromNetwork(ctx, cy.locator)
	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Message)
	}
	c.complete(cy, resp, failure)
}

// fromCache returns the fresh cached response for locator. Entries that are
// stale, unreadable or carry an error marker count as misses.
func (c *Coordinator[T]) fromCache(ctx context.Context, locator string) (*Response[T], bool) {
	ns := c.opts.namespace
	bucket, err := c.store.Open(ctx, ns)
	if err != nil {
		c.logger.Warn("cache unavailable", "namespace", ns, "err", err)
		return nil, false
	}

	entry, ok, err := bucket.Match(ctx, locator)
	if err != nil {
		c.logger.Warn("cache read failed", "locator", locator, "err", err)
	}
	if !ok || !entry.Fresh(c.opts.now(), c.opts.cacheTTL) {
		observability.Cache().OnCacheMiss(ctx, ns)
		return nil, false
	}

	data, failure := decode[T](entry.Body, http.StatusOK)
	if failure != nil {
		c.logger.Debug("ignoring unusable cache entry", "locator", locator, "err", failure)
		observability.Cache().OnCacheMiss(ctx, ns)
		return nil, false
	}

	written, _ := entry.Date()
	observability.Cache().OnCacheHit(ctx, ns)
	return &Response[T]{Data: data, Cached: true, FetchedAt: written}, true
}

// fromNetwork performs one request. A 2xx body is written to the cache before
// it is decoded, so an error marker is cached like any other body.
func (c *Coordinator[T]) fromNetwork(ctx context.Context, locator string) (*Response[T], *Error) {
	res, err := c.client.Do(ctx, locator, c.opts.request)
	if err != nil {
		if ctx.Err() != nil {
			return nil, abortError()
		}
		return nil, networkError(err)
	}
	if !res.OK() {
		return nil, statusError(res.StatusCode, res.Body)
	}

	now := c.opts.now()
	if bucket, err := c.store.Open(ctx, c.opts.namespace); err == nil {
		if err := bucket.Put(ctx, locator, cache.NewEntry(res.Body, now)); err != nil {
			c.logger.Warn("cache write failed", "locator", locator, "err", err)
		}
	}

	data, failure := decode[T](res.Body, res.StatusCode)
	if failure != nil {
		return nil, failure
	}
	return &Response[T]{Data: data, FetchedAt: now}, nil
}

// complete applies the outcome of an attempt. Outcomes of superseded or
// aborted cycles are dropped.
func (c *Coordinator[T]) complete(cy *cycle, resp *Response[T], failure *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.doneLocked() || !c.sess.current(cy) {
		aborted := cy.ctx.Err() != nil
		cy.cancel()
		if !aborted {
			c.logger.Debug("discarding stale completion", "cycle", cy.seq, "latest", c.sess.seq)
			observability.Query().OnStaleCompletion(cy.ctx, cy.locator)
		}
		return
	}

	switch {
	case failure == nil:
		c.settleLocked(cy, resp, nil)
	case cy.ctx.Err() != nil:
		c.settleLocked(cy, nil, abortError())
	case c.sess.retries < c.opts.maxRetries-1:
		c.sess.retries++
		cy.attempt++
		delay := c.opts.retryInterval
		c.logger.Debug("retry scheduled", "cycle", cy.seq, "attempt", cy.attempt, "in", delay, "err", failure.Message)
		observability.Query().OnRetryScheduled(cy.ctx, cy.locator, cy.attempt, delay)
		cy.timer = time.AfterFunc(delay, func() { c.fire(cy) })
	default:
		c.settleLocked(cy, nil, failure)
	}
}

// fire runs the retry armed for cy, unless cy was superseded meanwhile.
func (c *Coordinator[T]) fire(cy *cycle) {
	c.mu.Lock()
	if c.doneLocked() || !c.sess.current(cy) {
		cy.cancel()
		c.mu.Unlock()
		return
	}
	cy.timer = nil
	n := cy.attempt
	c.mu.Unlock()

	c.attempt(cy, n)
}
