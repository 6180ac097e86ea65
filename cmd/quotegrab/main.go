package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/quotegrab/cache"
	"github.com/use-agent/quotegrab/config"
	"github.com/use-agent/quotegrab/engine"
	"github.com/use-agent/quotegrab/scraper"
)

var (
	cfg         *config.Config
	engineName  string
	concurrency int
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "quotegrab",
	Short: "Batch extraction of market quotes from rendered pages",
	Long: `quotegrab renders quote pages in isolated browser sessions and extracts
price, change, currency, exchange and session state for every target.

Configuration comes from QUOTEGRAB_* environment variables; flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// ── 1. Load configuration ───────────────────────────────────
		cfg = config.Load()
		if cmd.Flags().Changed("engine") {
			cfg.Browser.Engine = engineName
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Scraper.Concurrency = concurrency
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// ── 2. Initialise structured logging ────────────────────────
		// run prints results on stdout, so its logs go to stderr.
		logOut := os.Stdout
		if cmd.Name() == "run" {
			logOut = os.Stderr
		}
		initLogger(cfg.Log, logOut)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&engineName, "engine", "rod", "render engine (rod|http)")
	rootCmd.PersistentFlags().IntVarP(&concurrency, "concurrency", "c", 10, "maximum sessions open at once")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	rootCmd.AddCommand(serveCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newScraper builds the engine and scraper described by cfg. The engine
// is not started here; the first batch starts it.
func newScraper(cfg *config.Config) *scraper.Scraper {
	var eng engine.Engine
	switch cfg.Browser.Engine {
	case "http":
		eng = engine.NewHTTPEngine()
	default:
		eng = engine.NewRodEngine(engine.RodConfig{
			Headless:   cfg.Browser.Headless,
			NoSandbox:  cfg.Browser.NoSandbox,
			BrowserBin: cfg.Browser.BrowserBin,
			Proxy:      cfg.Browser.Proxy,
		})
	}

	opts := scraper.DefaultOptions()
	opts.Concurrency = cfg.Scraper.Concurrency
	opts.NavigationTimeout = cfg.Scraper.NavigationTimeout
	opts.FieldTimeout = cfg.Scraper.FieldTimeout
	opts.TargetTimeout = cfg.Scraper.TargetTimeout
	opts.Session = engine.SessionOptions{
		UserAgent:      cfg.Session.UserAgent,
		Viewport:       engine.Viewport{Width: cfg.Session.Width, Height: cfg.Session.Height},
		Locale:         cfg.Session.Locale,
		ScriptDisabled: true,
		Blocked:        engine.ParseResourceKinds(cfg.Session.BlockedResources),
	}

	sc := scraper.New(eng, opts)
	if cfg.Cache.TTL > 0 {
		sc.SetCache(cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL))
		slog.Info("result cache enabled", "ttl", cfg.Cache.TTL, "maxEntries", cfg.Cache.MaxEntries)
	}
	return sc
}
