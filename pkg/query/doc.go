// Package query coordinates fetching a single remote resource.
//
// A [Coordinator] owns one locator (an http or https URL) and keeps an
// observable [State] describing the fetch: whether a cycle is running, the
// last decoded response, or the error the last cycle ended with.
//
// # Cycles
//
// A cycle is one attempt to obtain the resource, plus up to
// [DefaultMaxRetries]-1 retries spaced [DefaultRetryInterval] apart. Unless
// the cache is bypassed, an attempt first looks for a fresh entry in the
// response cache and only goes to the network on a miss. Network bodies are
// written to the cache stamped with a [cache.QueryDateHeader] header, and an
// entry stays fresh for [DefaultCacheTTL].
//
// A response counts as a failure when its status is not 2xx, when its body
// cannot be decoded into T, or when it is a JSON object with a truthy "error"
// member. The last failure is reported as an [*Error].
//
// # State machine
//
//	Idle ──start──▶ Loading ──▶ Success
//	  ▲                │   └──▶ Error
//	  └────refetch─────┴──────────┘
//
// [Coordinator.Refetch] and [Coordinator.SetLocator] always pass through
// Idle before the new cycle starts. [Coordinator.Abort] settles the running
// cycle with an error carrying [AbortMessage] and [AbortStatusCode].
//
// Only the newest cycle can change the state. A request that completes after
// a newer cycle was started is discarded.
//
// # Usage
//
//	type Post struct {
//	    ID    int    `json:"id"`
//	    Title string `json:"title"`
//	}
//
//	c, err := query.New[Post](ctx, "https://api.example.com/posts/1",
//	    query.WithCache(cache.NewMemoryCache()),
//	    query.WithRetryInterval(500*time.Millisecond),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	s, err := c.Wait(ctx)
//	if err != nil {
//	    return err
//	}
//	if s.Err != nil {
//	    return s.Err
//	}
//	fmt.Println(s.Response.Data.Title)
//
// Use [Coordinator.Subscribe] to follow every state change instead of
// waiting for the result.
package query
