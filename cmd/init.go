package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/config"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/logging"
)

var (
	flagInitURL          string
	flagInitUsername     string
	flagInitClientID     string
	flagInitAttribute    string
	flagInitInsecureTLS  bool
	flagInitForce        bool
	flagInitSkipValidate bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a config file with the Jamf Pro connection settings and the default
report settings.

Secrets are read from JAMF_PASSWORD or JAMF_CLIENT_SECRET rather than flags so
they do not end up in shell history. The file is created with mode 0600.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&flagInitURL, "url", "", "Jamf Pro URL, e.g. https://acme.jamfcloud.com (env: JAMF_URL)")
	initCmd.Flags().StringVar(&flagInitUsername, "username", "", "API user name (env: JAMF_USERNAME)")
	initCmd.Flags().StringVar(&flagInitClientID, "client-id", "", "API client id (env: JAMF_CLIENT_ID)")
	initCmd.Flags().StringVar(&flagInitAttribute, "attribute", "", "Extension attribute holding the boot time (default: Uptime)")
	initCmd.Flags().BoolVar(&flagInitInsecureTLS, "insecure-skip-verify", false, "Do not verify the Jamf Pro TLS certificate")
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "Overwrite an existing config file")
	initCmd.Flags().BoolVar(&flagInitSkipValidate, "skip-validate", false, "Write the file even if credentials are incomplete")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	logging.Setup(flagLogLevel, flagLogFormat)

	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !flagInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := starterConfig(os.Getenv)
	if !flagInitSkipValidate {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if err := config.Write(path, cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config written to %s\n", path)
	fmt.Fprintf(out, "  URL:       %s\n", valueOrNA(cfg.Jamf.URL))
	fmt.Fprintf(out, "  Attribute: %s\n", cfg.Report.AttributeName)
	fmt.Fprintf(out, "  Cache:     %s\n", cfg.Report.CachePath)
	fmt.Fprintln(out, "\nRun the first report with: jamf-uptime --full-scan")
	return nil
}

// starterConfig builds the config to write from init flags, falling back
// to the JAMF_* environment.
func starterConfig(getenv func(string) string) *config.Config {
	pick := func(flag, env string) string {
		if flag != "" {
			return flag
		}
		return getenv(env)
	}

	cfg := config.DefaultConfig()
	cfg.Jamf.URL = pick(flagInitURL, "JAMF_URL")
	cfg.Jamf.InsecureSkipVerify = flagInitInsecureTLS

	if id := pick(flagInitClientID, "JAMF_CLIENT_ID"); id != "" {
		cfg.Jamf.ClientID = id
		cfg.Jamf.ClientSecret = getenv("JAMF_CLIENT_SECRET")
	} else {
		cfg.Jamf.Username = pick(flagInitUsername, "JAMF_USERNAME")
		cfg.Jamf.Password = getenv("JAMF_PASSWORD")
	}

	if flagInitAttribute != "" {
		cfg.Report.AttributeName = flagInitAttribute
	}
	if flagCacheFile != "" {
		cfg.Report.CachePath = flagCacheFile
	}
	return cfg
}
