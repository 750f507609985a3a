// Package pkg holds the public libraries of fetchq.
//
// # Overview
//
// fetchq fetches JSON resources through a fetch coordinator: a small state
// machine that serves fresh responses from a cache, retries failed requests
// and can be aborted at any time. The pkg directory is organized as:
//
//  1. [query] - The fetch coordinator and its observable state
//  2. [cache] - Cache backends (memory, file, redis, mongo) and the response store
//  3. [httputil] - HTTP transport and retry helpers
//  4. [observability] - Hooks for metrics and logging, with a Prometheus implementation
//  5. [errors] - Structured error codes and input validation
//  6. [diagram] - Graphviz rendering of the coordinator state machine
//
// # Architecture
//
// One fetch cycle flows through the packages like this:
//
//	query.Coordinator.Refetch
//	         ↓
//	    [cache] response store (fresh entry? settle with it)
//	         ↓
//	    [httputil] client (request, read body)
//	         ↓
//	    [cache] store the body with its query date
//	         ↓
//	    decode, or retry / settle with an error
//
// # Quick Start
//
//	q, err := query.New[Post](ctx, "https://example.com/posts/1")
//	if err != nil {
//	    return err
//	}
//	defer q.Close()
//
//	state, err := q.Wait(ctx)
//	if err != nil {
//	    return err
//	}
//	if state.Err != nil {
//	    return state.Err
//	}
//	fmt.Println(state.Response.Data.Title)
//
// [query]: github.com/matzehuels/fetchq/pkg/query
// [cache]: github.com/matzehuels/fetchq/pkg/cache
// [httputil]: github.com/matzehuels/fetchq/pkg/httputil
// [observability]: github.com/matzehuels/fetchq/pkg/observability
// [errors]: github.com/matzehuels/fetchq/pkg/errors
// [diagram]: github.com/matzehuels/fetchq/pkg/diagram
package pkg
