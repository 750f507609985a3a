package cli

import (
	"context"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/fetchq/internal/config"
	"github.com/matzehuels/fetchq/pkg/buildinfo"
	"github.com/matzehuels/fetchq/pkg/cache"
	"github.com/matzehuels/fetchq/pkg/observability"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = config.AppName

	// skipConfigAnnotation marks commands that run without loading the config.
	skipConfigAnnotation = "fetchq/skip-config"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "fetchq fetches JSON resources with caching, retries and aborts",
		Long: `fetchq is a client for JSON HTTP resources. Every request goes through a
fetch coordinator that serves fresh responses from a cache, retries failed
attempts and can be aborted at any time.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: "+config.Path()+")")

	// Register all subcommands
	root.AddCommand(c.getCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.diagramCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the configuration for cmd unless the command opts out.
func (c *CLI) loadConfig(cmd *cobra.Command) error {
	if skipsConfig(cmd) {
		return nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// config returns the loaded configuration, or the defaults for commands that
// skipped loading.
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

func skipsConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if _, ok := cmd.Annotations[skipConfigAnnotation]; ok {
			return true
		}
	}
	return false
}

func skipConfig() map[string]string {
	return map[string]string{skipConfigAnnotation: "true"}
}

// =============================================================================
// Store Factory
// =============================================================================

// openCache connects the configured cache backend, or a cache that stores
// nothing when noCache is set.
func (c *CLI) openCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	return c.config().OpenCache(ctx, c.Logger)
}

// =============================================================================
// Metrics
// =============================================================================

// newMetricsHandler installs Prometheus hooks for this process and returns the
// handler exposing them.
func newMetricsHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observability.NewMetrics(reg).Register()
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
