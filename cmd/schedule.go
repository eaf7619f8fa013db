package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/config"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/logging"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/schedule"
)

var (
	flagScheduleDay    string
	flagScheduleHour   int
	flagScheduleMinute int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the scheduled weekly full scan",
	Long: `Install or remove a weekly full scan as a systemd timer (Linux) or
launchd job (macOS). Runs as a user job unless invoked as root.

The job reads credentials from the config file, so run 'jamf-uptime init'
first.`,
}

var scheduleInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install or update the weekly full scan",
	Args:  cobra.NoArgs,
	RunE:  runScheduleInstall,
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the weekly full scan",
	Args:  cobra.NoArgs,
	RunE:  runScheduleRemove,
}

func init() {
	scheduleInstallCmd.Flags().StringVar(&flagScheduleDay, "day", "sunday", "Day of the week to run")
	scheduleInstallCmd.Flags().IntVar(&flagScheduleHour, "hour", 3, "Hour of the day to run (0-23)")
	scheduleInstallCmd.Flags().IntVar(&flagScheduleMinute, "minute", 0, "Minute of the hour to run (0-59)")

	scheduleCmd.AddCommand(scheduleInstallCmd, scheduleRemoveCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleInstall(cmd *cobra.Command, args []string) error {
	logging.Setup(flagLogLevel, flagLogFormat)

	day, err := schedule.ParseWeekday(flagScheduleDay)
	if err != nil {
		return err
	}

	configPath := flagConfig
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	configPath, err = filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	if err := checkScheduledConfig(configPath); err != nil {
		return err
	}

	bin, err := schedule.BinaryPath()
	if err != nil {
		return err
	}

	job := schedule.Job{
		BinaryPath: bin,
		ConfigPath: configPath,
		Weekday:    day,
		Hour:       flagScheduleHour,
		Minute:     flagScheduleMinute,
	}
	if err := schedule.Install(job); err != nil {
		return fmt.Errorf("install schedule: %w", err)
	}

	s := schedule.CurrentStatus()
	fmt.Fprintf(cmd.OutOrStdout(), "Weekly full scan scheduled for %s at %02d:%02d.\n  Unit: %s\n",
		day, job.Hour, job.Minute, s.UnitPath)
	return nil
}

func runScheduleRemove(cmd *cobra.Command, args []string) error {
	logging.Setup(flagLogLevel, flagLogFormat)

	if err := schedule.Remove(); err != nil {
		return fmt.Errorf("remove schedule: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Scheduled full scan removed.")
	return nil
}

// checkScheduledConfig validates the config file on its own. The scheduled
// job does not inherit this shell's JAMF_* variables.
func checkScheduledConfig(path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("scheduled runs need a config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s is incomplete for scheduled runs: %w", path, err)
	}
	return nil
}
