package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/matzehuels/fetchq/internal/fixture"
	"github.com/matzehuels/fetchq/pkg/query"
)

// locatorPlaceholder is replaced by the page number in a watch template.
const locatorPlaceholder = "{n}"

// maxBodyLines caps the body shown in the watch view.
const maxBodyLines = 20

// watchOptions holds the flags of the watch command.
type watchOptions struct {
	Start       int
	NoCache     bool
	MetricsAddr string
	LogFile     string
}

// watchCommand creates the interactive watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Interactively refetch, abort and page through a resource",
		Long: `Watch shows the live state of a single fetch coordinator.

The URL may contain the placeholder {n}. It is replaced by a page number
that the + and - keys change, which moves the coordinator to a new locator.

Keys:
  r  refetch (cache allowed)
  f  force refetch from the network
  a  abort the running cycle
  +  next page
  -  previous page
  q  quit`,
		Example: `  fetchq watch 'http://localhost:4000/posts/{n}'
  fetchq watch --start 3 --metrics-addr localhost:9090 'http://localhost:4000/posts/{n}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Start, "start", 1, "initial value of {n}")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "bypass the response cache")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "write logs to this file instead of discarding them")

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, template string, opts watchOptions) error {
	if opts.Start < 1 {
		return fmt.Errorf("--start must be at least 1, got %d", opts.Start)
	}

	// The terminal belongs to the TUI; logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := newLogger(logOut, c.Logger.GetLevel())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr := opts.MetricsAddr
	if addr == "" {
		addr = c.config().Server.MetricsAddr
	}
	if addr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", newMetricsHandler())
		go func() {
			if err := fixture.ListenAndServe(ctx, addr, r, logger); err != nil {
				logger.Error("metrics server", "error", err)
			}
		}()
	}

	backend, err := c.openCache(ctx, opts.NoCache)
	if err != nil {
		return err
	}
	defer backend.Close()

	queryOpts := append(c.config().QueryOptions(), query.WithCache(backend), query.WithLogger(logger))
	q, err := query.New[json.RawMessage](ctx, locatorFor(template, opts.Start), queryOpts...)
	if err != nil {
		return err
	}
	defer q.Close()

	m := newWatchModel(q, template, opts.Start)
	defer m.unsubscribe()

	_, err = tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}

// locatorFor fills the page placeholder of template with n.
func locatorFor(template string, n int) string {
	return strings.ReplaceAll(template, locatorPlaceholder, strconv.Itoa(n))
}

// =============================================================================
// Key Map
// =============================================================================

// watchKeyMap lists the watch key bindings.
type watchKeyMap struct {
	Refetch key.Binding
	Force   key.Binding
	Abort   key.Binding
	Next    key.Binding
	Prev    key.Binding
	Quit    key.Binding
}

func newWatchKeyMap(paged bool) watchKeyMap {
	km := watchKeyMap{
		Refetch: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refetch")),
		Force:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "force")),
		Abort:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "abort")),
		Next:    key.NewBinding(key.WithKeys("+", "=", "right"), key.WithHelp("+", "next")),
		Prev:    key.NewBinding(key.WithKeys("-", "left"), key.WithHelp("-", "prev")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
	km.Next.SetEnabled(paged)
	km.Prev.SetEnabled(paged)
	return km
}

// bindings returns the enabled bindings in display order.
func (km watchKeyMap) bindings() []key.Binding {
	all := []key.Binding{km.Refetch, km.Force, km.Abort, km.Prev, km.Next, km.Quit}
	out := all[:0]
	for _, b := range all {
		if b.Enabled() {
			out = append(out, b)
		}
	}
	return out
}

// =============================================================================
// Model
// =============================================================================

// stateMsg carries a state published by the coordinator.
type stateMsg query.State[json.RawMessage]

// closedMsg reports that the coordinator closed its subscription.
type closedMsg struct{}

// watchModel is the bubbletea model of the watch command.
type watchModel struct {
	q           *query.Coordinator[json.RawMessage]
	template    string
	n           int
	state       query.State[json.RawMessage]
	updates     <-chan query.State[json.RawMessage]
	unsubscribe func()
	spinner     spinner.Model
	keys        watchKeyMap
	err         error
	now         func() time.Time
}

func newWatchModel(q *query.Coordinator[json.RawMessage], template string, n int) watchModel {
	updates, unsubscribe := q.Subscribe()
	return watchModel{
		q:           q,
		template:    template,
		n:           n,
		state:       q.State(),
		updates:     updates,
		unsubscribe: unsubscribe,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styleIconSpinner)),
		keys:        newWatchKeyMap(strings.Contains(template, locatorPlaceholder)),
		now:         time.Now,
	}
}

// waitForState turns the next subscription value into a message.
func waitForState(ch <-chan query.State[json.RawMessage]) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return stateMsg(s)
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.updates))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refetch):
			m.q.Refetch(true)
		case key.Matches(msg, m.keys.Force):
			m.q.Refetch(false)
		case key.Matches(msg, m.keys.Abort):
			m.q.Abort()
		case key.Matches(msg, m.keys.Next):
			m = m.page(1)
		case key.Matches(msg, m.keys.Prev):
			m = m.page(-1)
		}
	case stateMsg:
		m.state = query.State[json.RawMessage](msg)
		return m, waitForState(m.updates)
	case closedMsg:
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// page moves the placeholder by delta and points the coordinator at the new
// locator. Pages start at 1.
func (m watchModel) page(delta int) watchModel {
	n := m.n + delta
	if n < 1 {
		return m
	}
	if err := m.q.SetLocator(locatorFor(m.template, n)); err != nil {
		m.err = err
		return m
	}
	m.n = n
	return m
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(appName + " watch"))
	if m.keys.Next.Enabled() {
		b.WriteString(StyleDim.Render("  page ") + StyleHighlight.Render(strconv.Itoa(m.n)))
	}
	b.WriteString("\n\n")
	b.WriteString(m.summary())
	b.WriteString("\n\n")

	switch {
	case m.state.Err != nil:
		b.WriteString(StyleError.Render(iconError + " " + m.state.Err.Error()))
		b.WriteString("\n")
		if payload, err := json.MarshalIndent(m.state.Err, "", "  "); err == nil {
			b.WriteString(StyleDim.Render(string(payload)))
		}
	case m.state.Response != nil:
		b.WriteString(truncateLines(indentJSON(m.state.Response.Data), maxBodyLines))
	default:
		b.WriteString(StyleDim.Render("waiting for the first response..."))
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render(iconWarning + " " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.helpView())
	return b.String()
}

// summary renders the locator and outcome table.
func (m watchModel) summary() string {
	status := m.state.Status.String()
	if m.state.IsLoading() {
		status = m.spinner.View() + " " + status
	}

	source, fetched := "—", "—"
	if r := m.state.Response; r != nil {
		source = iconFresh
		if r.Cached {
			source = iconCached
		}
		if !r.FetchedAt.IsZero() {
			fetched = formatRelativeTime(r.FetchedAt, m.now())
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Rows(
			[]string{"Locator", m.q.Locator()},
			[]string{"Status", status},
			[]string{"Source", source},
			[]string{"Fetched", fetched},
		).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return StyleDim
			}
			if row == 1 {
				return statusStyle(m.state.Status)
			}
			return lipgloss.NewStyle()
		})
	return t.Render()
}

func statusStyle(s query.Status) lipgloss.Style {
	switch s {
	case query.StatusSuccess:
		return StyleSuccess
	case query.StatusError:
		return StyleError
	}
	return lipgloss.NewStyle().Foreground(colorCyan)
}

func (m watchModel) helpView() string {
	parts := make([]string, 0, 6)
	for _, b := range m.keys.bindings() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return StyleDim.Render(strings.Join(parts, "  "))
}

// =============================================================================
// Helpers
// =============================================================================

func indentJSON(raw json.RawMessage) string {
	var b strings.Builder
	if err := writeBody(&b, raw, false); err != nil {
		return string(raw)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func truncateLines(s string, max int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	more := StyleDim.Render(fmt.Sprintf("… %d more lines", len(lines)-max))
	return strings.Join(lines[:max], "\n") + "\n" + more
}

func formatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Second:
		return "just now"
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return t.Format("Jan 2, 2006")
	}
}
