package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/fetchq/pkg/errors"
	"github.com/matzehuels/fetchq/pkg/query"
)

// getOptions holds the flags of the get command.
type getOptions struct {
	NoCache bool
	Method  string
	Headers []string
	Data    string
	Raw     bool
}

// getResult is the settled state of one locator.
type getResult struct {
	Locator string
	State   query.State[json.RawMessage]
	Elapsed time.Duration
}

// getCommand creates the get command for fetching one or more resources.
func (c *CLI) getCommand() *cobra.Command {
	var opts getOptions

	cmd := &cobra.Command{
		Use:   "get <url> [url...]",
		Short: "Fetch JSON resources through the cache",
		Long: `Fetch one or more JSON resources concurrently.

Each URL is served from the cache when a fresh entry exists. Otherwise it is
requested from the network and retried on failure. Bodies are printed as
indented JSON, followed by the response size and whether it came from the
cache.`,
		Example: `  # Fetch a resource
  fetchq get https://jsonplaceholder.typicode.com/posts/1

  # Skip the cache and send a header
  fetchq get --no-cache -H "Accept: application/json" http://localhost:4000/posts

  # Create a resource
  fetchq get -d '{"title":"hello"}' http://localhost:4000/posts`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGet(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "bypass the response cache")
	cmd.Flags().StringVarP(&opts.Method, "method", "X", "", "HTTP method (default: GET, or POST with --data)")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, `request header as "Key: Value" (repeatable)`)
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "request body")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print bodies as received")

	return cmd
}

func (c *CLI) runGet(cmd *cobra.Command, locators []string, opts getOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	queryOpts, err := requestOptions(opts)
	if err != nil {
		return err
	}

	backend, err := c.openCache(ctx, opts.NoCache)
	if err != nil {
		return err
	}
	defer backend.Close()

	queryOpts = append(c.config().QueryOptions(), queryOpts...)
	queryOpts = append(queryOpts, query.WithCache(backend), query.WithLogger(logger))

	results := make([]getResult, len(locators))
	var settled atomic.Int32
	prog := newProgress(logger)

	spinner := newSpinnerWithContext(ctx, progressMessage(0, len(locators)))
	spinner.Start()

	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range locators {
		g.Go(func() error {
			start := time.Now()
			q, err := query.New[json.RawMessage](gctx, loc, queryOpts...)
			if err != nil {
				return err
			}
			defer q.Close()

			state, err := q.Wait(gctx)
			if err != nil {
				return err
			}
			if !state.Settled() {
				// Closed by a cancelled context before the cycle settled.
				return gctx.Err()
			}
			results[i] = getResult{Locator: loc, State: state, Elapsed: time.Since(start)}
			spinner.SetMessage(progressMessage(int(settled.Add(1)), len(locators)))
			return nil
		})
	}
	err = g.Wait()
	spinner.Stop()
	if err != nil {
		return err
	}

	prog.done(fmt.Sprintf("Fetched %d resource(s)", len(locators)))
	return printResults(cmd.OutOrStdout(), results, opts.Raw)
}

// requestOptions maps the request flags to coordinator options.
func requestOptions(opts getOptions) ([]query.Option, error) {
	var out []query.Option

	method := strings.ToUpper(opts.Method)
	if method == "" && opts.Data != "" {
		method = http.MethodPost
	}
	if method != "" {
		out = append(out, query.WithMethod(method))
	}

	for _, h := range opts.Headers {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "invalid header %q (want \"Key: Value\")", h)
		}
		out = append(out, query.WithHeader(key, strings.TrimSpace(value)))
	}

	if opts.Data != "" {
		out = append(out, query.WithBody([]byte(opts.Data)))
		if !hasHeader(opts.Headers, "Content-Type") {
			out = append(out, query.WithHeader("Content-Type", "application/json"))
		}
	}
	return out, nil
}

func hasHeader(headers []string, name string) bool {
	for _, h := range headers {
		key, _, _ := strings.Cut(h, ":")
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return true
		}
	}
	return false
}

func progressMessage(done, total int) string {
	if total == 1 {
		return "Fetching..."
	}
	return fmt.Sprintf("Fetching %d/%d...", done, total)
}

// printResults writes every outcome to w. It returns an error when at least
// one locator failed, carrying the failures' code when they all share one.
func printResults(w io.Writer, results []getResult, raw bool) error {
	var failures []*query.Error
	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+r.Locator)
		}

		if r.State.Err != nil {
			failures = append(failures, r.State.Err)
			printFailure(w, r.State.Err)
			continue
		}

		body := []byte(r.State.Response.Data)
		if err := writeBody(w, body, raw); err != nil {
			return err
		}
		printStats(w, len(body), r.Elapsed, r.State.Response.Cached)
	}

	if len(failures) > 0 {
		return errors.New(failureCode(failures), "%d of %d requests failed", len(failures), len(results))
	}
	return nil
}

// failureCode is the code shared by all failures, or ErrCodeRequestFailed
// when they differ.
func failureCode(failures []*query.Error) errors.Code {
	code := failures[0].Code
	for _, f := range failures[1:] {
		if f.Code != code {
			return errors.ErrCodeRequestFailed
		}
	}
	return code
}

func printFailure(w io.Writer, err *query.Error) {
	if err.Aborted() {
		fmt.Fprintln(w, styleIconWarning.Render(iconAborted)+" "+err.Message)
		return
	}
	code := ""
	if err.StatusCode > 0 {
		code = styleStatusCode.Render(fmt.Sprint(err.StatusCode)) + " "
	}
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+code+err.Message)
	if err.Reason != "" && err.Reason != err.Message {
		fmt.Fprintln(w, "  "+StyleDim.Render(err.Reason))
	}
}

func writeBody(w io.Writer, body []byte, raw bool) error {
	if !raw {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err == nil {
			body = buf.Bytes()
		}
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
