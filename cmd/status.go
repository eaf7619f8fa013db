package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/cache"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/config"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/logging"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/schedule"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, cache and schedule state",
	Long: `Display the effective configuration (secrets masked), the state of the
ranked cache and whether a scheduled full scan is installed. No requests are
made to Jamf Pro.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	out := cmd.OutOrStdout()
	printConfig(out, cfg)
	fmt.Fprintln(out)
	if err := printCache(out, cfg, time.Now()); err != nil {
		return err
	}

	s := schedule.CurrentStatus()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Schedule:")
	fmt.Fprintf(out, "  Installed: %s\n", boolStatus(s.Installed))
	fmt.Fprintf(out, "  Active:    %s\n", boolStatus(s.Active))
	fmt.Fprintf(out, "  Unit:      %s\n", valueOrNA(s.UnitPath))

	fmt.Fprintf(out, "\nVersion:     %s\n", rootCmd.Version)
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  URL:        %s\n", valueOrNA(maskEnd(cfg.Jamf.URL, 40)))
	if cfg.Jamf.UsesClientCredentials() {
		fmt.Fprintf(w, "  Auth:       api client %s\n", maskToken(cfg.Jamf.ClientID))
		fmt.Fprintf(w, "  Secret:     %s\n", maskToken(cfg.Jamf.ClientSecret))
	} else {
		fmt.Fprintf(w, "  Auth:       user %s\n", valueOrNA(cfg.Jamf.Username))
		fmt.Fprintf(w, "  Password:   %s\n", maskToken(cfg.Jamf.Password))
	}
	fmt.Fprintf(w, "  Attribute:  %s\n", cfg.Report.AttributeName)
	fmt.Fprintf(w, "  Max age:    %d days\n", cfg.Report.MaxAgeDays)
	fmt.Fprintf(w, "  Cache top:  %d\n", cfg.Report.CacheTopN)
	fmt.Fprintf(w, "  Display:    %d\n", cfg.Report.DisplayTopK)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "  Problem:    %v\n", err)
	}
}

func printCache(w io.Writer, cfg *config.Config, now time.Time) error {
	fmt.Fprintln(w, "Cache:")
	fmt.Fprintf(w, "  Path:       %s\n", cfg.Report.CachePath)

	c, err := cache.Load(cfg.Report.CachePath)
	if err != nil {
		fmt.Fprintf(w, "  Unreadable: %v\n", err)
		return nil
	}
	if c == nil {
		fmt.Fprintln(w, "  Present:    no (next run is a full scan)")
		return nil
	}

	fresh := c.IsFresh(now, cfg.Report.MaxAgeDays)
	fmt.Fprintln(w, "  Present:    yes")
	fmt.Fprintf(w, "  Saved:      %s\n", c.SavedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "  Age:        %d days\n", c.AgeDays(now))
	fmt.Fprintf(w, "  Fresh:      %s\n", boolStatus(fresh))
	fmt.Fprintf(w, "  Entries:    %d\n", len(c.Entries))
	if c.Skipped > 0 {
		fmt.Fprintf(w, "  Malformed:  %d lines ignored\n", c.Skipped)
	}
	if len(c.Entries) > 0 {
		top := c.Entries[0]
		fmt.Fprintf(w, "  Leader:     %s (%s)\n", valueOrNA(top.Name), top.Display)
	}
	return nil
}

func boolStatus(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func valueOrNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func maskEnd(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
