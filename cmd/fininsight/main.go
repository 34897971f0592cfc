// FinInsight: stock ratings from news sentiment and fundamentals.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seenimoa/fininsight/api"
	"github.com/seenimoa/fininsight/internal/config"
	"github.com/seenimoa/fininsight/internal/datasource"
	"github.com/seenimoa/fininsight/internal/engine"
	"github.com/seenimoa/fininsight/internal/logger"
	"github.com/seenimoa/fininsight/internal/report"
	"github.com/seenimoa/fininsight/internal/telemetry"
	"github.com/seenimoa/fininsight/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

// errAnalysisFailed signals that an error result was already printed.
var errAnalysisFailed = errors.New("analysis failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errAnalysisFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fininsight",
	Short: "FinInsight: stock ratings from news sentiment and fundamentals",
	Long: `FinInsight fetches the latest price, key financial ratios and recent news
for a stock ticker, scores news sentiment, and combines both into a
Buy / Hold / Sell rating.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := logger.Init(logger.Config{
			Level:          cfg.Logging.Level,
			Format:         cfg.Logging.Format,
			FileEnabled:    cfg.Logging.FileEnabled,
			FilePath:       cfg.Logging.FilePath,
			MaxSizeMB:      cfg.Logging.MaxSizeMB,
			MaxAgeDays:     cfg.Logging.MaxAgeDays,
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: version,
		}); err != nil {
			return err
		}
		return telemetry.Init(telemetry.Config{
			Enabled:        cfg.Tracing.Enabled,
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: version,
		})
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return telemetry.Shutdown(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// newEngine builds the analysis engine from configuration. Without a
// NewsAPI key, news comes from the Yahoo Finance RSS feed.
func newEngine(c *config.Config) *engine.Engine {
	cacheTTL := c.Analysis.CacheDuration()

	market := datasource.NewYFinance(datasource.YFinanceConfig{
		BaseURL:    c.Market.BaseURL,
		CookieURL:  c.Market.CookieURL,
		Timeout:    c.Market.Timeout(),
		RatePerSec: c.Market.RatePerSec,
		CacheTTL:   cacheTTL,
	})
	news := datasource.NewNews(cacheTTL,
		datasource.NewNewsAPI(datasource.NewsAPIConfig{
			APIKey:     c.News.APIKey,
			BaseURL:    c.News.BaseURL,
			PageSize:   c.News.PageSize,
			Timeout:    c.News.Timeout(),
			RatePerSec: c.News.RatePerSec,
		}),
		datasource.NewYahooRSS(datasource.YahooRSSConfig{
			FeedURL:    c.News.RSSURL,
			PageSize:   c.News.PageSize,
			Timeout:    c.News.Timeout(),
			RatePerSec: c.News.RatePerSec,
		}),
	)

	return engine.New(market, news, engine.WithConcurrency(c.Analysis.ConcurrentFetches))
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "FinInsight %s\n", version)
		fmt.Fprintf(w, "  commit:  %s\n", commit)
		fmt.Fprintf(w, "  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ticker...]",
	Short: "Rate one or more stocks",
	Long: `Fetch market data and news for each ticker and print the rated result.
A failed analysis prints an error record and exits with status 1.`,
	Example: `  fininsight analyze AAPL
  fininsight analyze MSFT NVDA --format yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(stringFlag(cmd, "format"))
		if err != nil {
			return err
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		return runAnalyze(ctx, cmd.OutOrStdout(), newEngine(cfg), args, format)
	},
}

func init() {
	analyzeCmd.Flags().StringP("format", "f", "json", "output format (json, yaml, text)")
	analyzeCmd.Flags().Duration("timeout", 2*time.Minute, "overall analysis timeout (0 for none)")
}

// analyzer is the subset of the engine the analyze command uses.
type analyzer interface {
	Analyze(ctx context.Context, ticker string) (*models.AnalysisResult, error)
	AnalyzeMany(ctx context.Context, tickers []string) ([]engine.Outcome, error)
}

// runAnalyze prints one record per ticker: the result object for a single
// ticker, a list for several. It returns errAnalysisFailed when any ticker
// failed.
func runAnalyze(ctx context.Context, w io.Writer, a analyzer, tickers []string, format report.Format) error {
	if len(tickers) == 1 {
		res, err := a.Analyze(ctx, tickers[0])
		if err != nil {
			if encErr := report.Encode(w, format, report.NewErrorResult(err)); encErr != nil {
				return encErr
			}
			return errAnalysisFailed
		}
		return report.Encode(w, format, res)
	}

	outcomes, err := a.AnalyzeMany(ctx, tickers)
	if err != nil {
		log.Warn().Err(err).Msg("Batch analysis interrupted")
	}

	failed := err != nil
	records := make([]any, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			failed = true
			records[i] = report.NewErrorResult(o.Err)
			continue
		}
		records[i] = o.Result
	}
	if err := report.Encode(w, format, records); err != nil {
		return err
	}
	if failed {
		return errAnalysisFailed
	}
	return nil
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.API.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.API.Port = port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng := newEngine(cfg)
		go eng.RunCleanup(ctx, cfg.Analysis.CacheDuration())

		srv := api.NewServer(cfg, eng, version)
		return srv.ListenAndServe(ctx, cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (overrides api.host)")
	serveCmd.Flags().IntP("port", "p", 0, "listen port (overrides api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and API key status",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "═══════════════════════════════════════")
		fmt.Fprintln(w, "  FinInsight: System Status")
		fmt.Fprintln(w, "═══════════════════════════════════════")
		fmt.Fprintf(w, "  Version:       %s (%s)\n", version, commit)
		fmt.Fprintln(w)

		// Config summary
		newsSource := "Yahoo Finance RSS"
		if cfg.News.APIKey != "" {
			newsSource = "NewsAPI"
		}
		fmt.Fprintln(w, "  Configuration:")
		fmt.Fprintf(w, "    Market Data:   %s\n", cfg.Market.BaseURL)
		fmt.Fprintf(w, "    News Source:   %s (%d articles)\n", newsSource, cfg.News.PageSize)
		fmt.Fprintf(w, "    Cache TTL:     %s\n", cfg.Analysis.CacheDuration())
		fmt.Fprintf(w, "    Concurrency:   %d\n", cfg.Analysis.ConcurrentFetches)
		fmt.Fprintf(w, "    API Server:    %s\n", cfg.API.Addr())
		fmt.Fprintf(w, "    Logging:       %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
		fmt.Fprintf(w, "    Tracing:       %t\n", cfg.Tracing.Enabled)
		fmt.Fprintln(w)

		// API keys status
		fmt.Fprintln(w, "  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			} else if k.Note != "" {
				status += ", " + k.Note
			}
			fmt.Fprintf(w, "    %-25s %s\n", k.Name+":", status)
		}

		fmt.Fprintln(w, "═══════════════════════════════════════")
		return nil
	},
}

func stringFlag(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
