// Package httputil provides the network side of the fetch coordinator.
//
// # Overview
//
//   - [Client]: issues a single request and buffers the whole body, so the
//     same bytes can be written to the cache and decoded afterwards.
//   - [Retry]: blocking retry with exponential backoff.
//   - [Ping]: [Retry] with connection defaults; the Redis and MongoDB caches
//     check a new connection with it.
//
// # Errors
//
// Transport failures (DNS, refused connections, resets, timeouts) are wrapped
// in [RetryableError] around [ErrNetwork]. A cancelled context is returned
// as-is so callers can tell an abort apart from a network failure:
//
//	resp, err := client.Do(ctx, url, httputil.Request{Method: http.MethodGet})
//	switch {
//	case ctx.Err() != nil:
//	    // aborted
//	case errors.Is(err, httputil.ErrNetwork):
//	    // transient
//	case !resp.OK():
//	    // non-2xx status
//	}
//
// Non-2xx responses are not errors at this layer; [Response.OK] reports them.
package httputil
