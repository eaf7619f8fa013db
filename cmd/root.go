package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/config"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/jamf"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/logging"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/report"
)

var (
	// Flags
	flagFullScan  bool
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagCacheFile string
	flagTop       int
	flagFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "jamf-uptime",
	Short: "Report the Jamf Pro computers with the longest uptime",
	Long: `jamf-uptime ranks managed computers by time since last boot, using the
boot timestamp that a Jamf Pro extension attribute reports for each device.

The top entries are cached between runs. While the cache is fresh only the
cached devices are re-checked (quick scan); otherwise, or with --full-scan,
every computer in the inventory is fetched.

Credentials come from the config file or JAMF_URL with JAMF_USERNAME and
JAMF_PASSWORD (or JAMF_CLIENT_ID and JAMF_CLIENT_SECRET).`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReport,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagFullScan, "full-scan", "f", false, "Ignore the cache and scan every computer")
	rootCmd.Flags().IntVar(&flagTop, "top", 0, "Number of devices to display (default from config: 25)")
	rootCmd.Flags().StringVar(&flagFormat, "format", "table", "Output format: table, json")

	rootCmd.PersistentFlags().StringVar(&flagCacheFile, "cache-file", "", "Ranked cache file (env: JAMF_UPTIME_CACHE)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text, json")
}

// Execute runs the root command.
func Execute(version string) {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("jamf-uptime %s\n", version))
	if err := rootCmd.Execute(); err != nil {
		slog.Error("jamf-uptime failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.Logging.Format = flagLogFormat
	}
	if flagCacheFile != "" {
		cfg.Report.CachePath = flagCacheFile
	}
	if flagTop > 0 {
		cfg.Report.DisplayTopK = flagTop
	}
	return cfg, nil
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		logging.Setup(flagLogLevel, flagLogFormat)
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return err
	}

	presenter, err := report.NewPresenter(flagFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default().With("run_id", uuid.NewString())
	err = run(ctx, cfg, flagFullScan, presenter, cmd.OutOrStdout(), logger)
	if errors.Is(err, report.ErrNoData) {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"No computers reported a usable %q extension attribute. Check that the attribute exists and is populated.\n",
			cfg.Report.AttributeName)
	}
	return err
}

// run executes one report against the configured Jamf Pro instance and
// writes the ranking to out.
func run(ctx context.Context, cfg *config.Config, fullScan bool, presenter report.Presenter, out io.Writer, logger *slog.Logger) error {
	httpClient := jamf.NewHTTPClient(cfg.Jamf.Timeout, cfg.Jamf.InsecureSkipVerify)

	var tokens jamf.TokenProvider
	if cfg.Jamf.UsesClientCredentials() {
		tokens = jamf.NewClientCredentialsProvider(cfg.Jamf.URL, cfg.Jamf.ClientID, cfg.Jamf.ClientSecret, httpClient)
	} else {
		tokens = jamf.NewBasicAuthProvider(cfg.Jamf.URL, cfg.Jamf.Username, cfg.Jamf.Password, httpClient)
	}

	client := jamf.NewClient(cfg.Jamf.URL, tokens, httpClient)
	if err := client.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate with %s: %w", cfg.Jamf.URL, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		client.Close(closeCtx)
	}()

	start := time.Now()
	res, err := report.NewReporter(client, report.Options{
		BuilderConfig: report.BuilderConfig{
			AttributeName:   cfg.Report.AttributeName,
			CachePath:       cfg.Report.CachePath,
			CacheTopN:       cfg.Report.CacheTopN,
			DisplayTopK:     cfg.Report.DisplayTopK,
			RequestInterval: cfg.Report.RequestInterval,
			FetchTimeout:    cfg.Report.FetchTimeout,
		},
		ForceFullScan: fullScan,
		MaxAgeDays:    cfg.Report.MaxAgeDays,
	}, logger).Run(ctx, start)
	if err != nil {
		return err
	}

	logger.Info("report complete",
		"mode", res.Mode,
		"valid", res.Valid,
		"skipped", res.Skipped,
		"cache_saved", res.CacheSaved,
		"duration", time.Since(start).Round(time.Millisecond))

	return presenter.Present(out, res)
}
