package query

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/fetchq/pkg/cache"
	"github.com/matzehuels/fetchq/pkg/errors"
	"github.com/matzehuels/fetchq/pkg/httputil"
	"github.com/matzehuels/fetchq/pkg/observability"
)

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 16

// Coordinator fetches one locator and exposes the result as observable state.
// All methods are safe for concurrent use.
type Coordinator[T any] struct {
	opts   options
	client *httputil.Client
	store  cache.Store
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State[T]
	sess    *session
	subs    map[int]chan State[T]
	nextSub int
	settled chan struct{}
	closed  bool
}

// New builds a coordinator for locator and starts its first cycle, which
// consults the cache. ctx bounds the lifetime of the coordinator: cancelling
// it closes the coordinator as [Coordinator.Close] does, so later calls to
// Refetch, Abort and SetLocator do nothing.
//
// New only fails for invalid arguments. Fetch failures are reported through
// the state.
func New[T any](ctx context.Context, locator string, opts ...Option) (*Coordinator[T], error) {
	if err := errors.ValidateLocator(locator); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.store == nil {
		o.store = cache.DefaultStore()
	}
	if o.logger == nil {
		o.logger = log.Default()
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)

	c := &Coordinator[T]{
		opts:    o,
		client:  httputil.NewClient(o.httpClient, nil),
		store:   o.store,
		logger:  o.logger.With("session", id[:8]),
		ctx:     ctx,
		cancel:  cancel,
		state:   State[T]{Status: StatusIdle},
		sess:    &session{id: id, locator: locator},
		subs:    make(map[int]chan State[T]),
		settled: make(chan struct{}),
	}

	c.mu.Lock()
	c.startLocked()
	c.mu.Unlock()

	context.AfterFunc(ctx, c.Close)

	return c, nil
}

// ID returns the session id used in logs.
func (c *Coordinator[T]) ID() string {
	return c.sess.id
}

// Locator returns the current target locator.
func (c *Coordinator[T]) Locator() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.locator
}

// State returns a snapshot of the current state.
func (c *Coordinator[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Refetch starts a new cycle. With useCache false the cycle skips the cache
// lookup and always goes to the network; the flag resets once the cycle
// settles.
//
// A cycle already in flight is superseded: its pending retry is cancelled and
// its result, if it still arrives, is discarded. Its request is not aborted.
func (c *Coordinator[T]) Refetch(useCache bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doneLocked() {
		return
	}
	c.sess.bypass = !useCache
	c.setLocked(StatusIdle)
	c.startLocked()
}

// Abort cancels the cycle in flight and settles it with the abort error.
// It does nothing when no cycle is in flight.
func (c *Coordinator[T]) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doneLocked() || c.sess.cycle == nil {
		return
	}
	cy := c.sess.cycle
	cy.cancel()
	retryPending := cy.stopTimer()
	c.logger.Debug("cycle aborted", "cycle", cy.seq, "retry_pending", retryPending)
	c.settleLocked(cy, nil, abortError())
}

// SetLocator switches the coordinator to a new locator. Once a cycle has
// settled, the switch starts a cycle that bypasses the cache. A switch during
// the very first cycle is applied when that cycle settles.
func (c *Coordinator[T]) SetLocator(locator string) error {
	if err := errors.ValidateLocator(locator); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doneLocked() || locator == c.sess.locator {
		return nil
	}

	c.logger.Debug("locator changed", "from", c.sess.locator, "to", locator)
	c.sess.locator = locator
	if !c.sess.completed {
		c.sess.pending = true
		return nil
	}

	c.sess.bypass = true
	c.setLocked(StatusIdle)
	c.startLocked()
	return nil
}

// Subscribe returns a channel that receives the current state followed by
// every change. A slow reader skips intermediate states but always receives
// the latest one. The channel is closed by the returned func or by Close.
func (c *Coordinator[T]) Subscribe() (<-chan State[T], func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State[T], subscriberBuffer)
	if c.doneLocked() {
		ch <- c.state
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Wait blocks until no cycle is requested or running and returns that state.
func (c *Coordinator[T]) Wait(ctx context.Context) (State[T], error) {
	for {
		c.mu.Lock()
		if c.state.Settled() || c.closed {
			s := c.state
			c.mu.Unlock()
			return s, nil
		}
		ch := c.settled
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}
}

// Close cancels any cycle in flight and closes all subscriber channels.
// The last state stays readable. Close is idempotent.
func (c *Coordinator[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Coordinator[T]) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	if cy := c.sess.cycle; cy != nil {
		cy.stopTimer()
		c.sess.cycle = nil
	}
	c.cancel()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.closeSettledLocked()
}

// doneLocked reports whether the coordinator accepts no more cycles. A
// cancelled parent context closes it, even if Close has not been called yet.
func (c *Coordinator[T]) doneLocked() bool {
	if !c.closed && c.ctx.Err() != nil {
		c.logger.Debug("context cancelled, closing", "err", c.ctx.Err())
		c.closeLocked()
	}
	return c.closed
}

// startLocked issues a new cycle for the current locator and bypass flag.
func (c *Coordinator[T]) startLocked() {
	s := c.sess
	if prev := s.cycle; prev != nil && prev.stopTimer() {
		// Superseded while waiting to retry: nothing else will release it.
		prev.cancel()
	}

	s.seq++
	s.retries = 0
	s.pending = false

	ctx, cancel := context.WithCancel(c.ctx)
	cy := &cycle{
		seq:     s.seq,
		locator: s.locator,
		bypass:  s.bypass,
		started: c.opts.now(),
		ctx:     ctx,
		cancel:  cancel,
		attempt: 1,
	}
	s.cycle = cy

	select {
	case <-c.settled:
		c.settled = make(chan struct{})
	default:
	}

	c.logger.Debug("cycle started", "cycle", cy.seq, "locator", cy.locator, "bypass_cache", cy.bypass)
	observability.Query().OnCycleStart(ctx, cy.locator, !cy.bypass)
	c.setLocked(StatusLoading)

	go c.attempt(cy, 1)
}

// settleLocked ends cy with either a response or an error.
func (c *Coordinator[T]) settleLocked(cy *cycle, resp *Response[T], failure *Error) {
	s := c.sess
	s.cycle = nil
	s.retries = 0
	s.bypass = false
	s.completed = true
	cy.cancel()

	next := State[T]{Status: StatusSuccess, Response: resp}
	var err error
	if failure != nil {
		next = State[T]{Status: StatusError, Err: failure}
		err = failure
	}
	c.transitionLocked(next)
	c.closeSettledLocked()

	elapsed := c.opts.now().Sub(cy.started)
	observability.Query().OnSettle(cy.ctx, cy.locator, next.Status.String(), elapsed, err)
	if failure != nil {
		c.logger.Debug("cycle failed", "cycle", cy.seq, "status", failure.StatusCode, "err", failure.Message)
	} else {
		c.logger.Debug("cycle succeeded", "cycle", cy.seq, "cached", resp.Cached, "elapsed", elapsed)
	}

	if s.pending {
		s.bypass = true
		c.setLocked(StatusIdle)
		c.startLocked()
	}
}

// setLocked moves to status keeping the last settled outcome.
func (c *Coordinator[T]) setLocked(status Status) {
	c.transitionLocked(State[T]{
		Status:   status,
		Response: c.state.Response,
		Err:      c.state.Err,
	})
}

func (c *Coordinator[T]) transitionLocked(next State[T]) {
	if next.Status != c.state.Status && !CanTransition(c.state.Status, next.Status) {
		c.logger.Warn("unexpected state transition", "from", c.state.Status, "to", next.Status)
	}
	c.state = next
	for _, ch := range c.subs {
		offer(ch, next)
	}
}

func (c *Coordinator[T]) closeSettledLocked() {
	select {
	case <-c.settled:
	default:
		close(c.settled)
	}
}

// offer delivers s without blocking, dropping the oldest queued state when
// the channel is full. Only the coordinator sends, always with its lock held.
func offer[T any](ch chan State[T], s State[T]) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
