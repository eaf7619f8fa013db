package schedule

import (
	"fmt"
	"html"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const launchdLabel = "com.escape-velocity-ventures.jamf-uptime"

// launchdPlistPath returns the plist path. Uses system-wide location if running as root,
// user-level otherwise.
func launchdPlistPath() string {
	if isRoot() {
		return "/Library/LaunchDaemons/" + launchdLabel + ".plist"
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
}

func launchdLogDir() string {
	if isRoot() {
		return "/var/log"
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Logs")
}

// LaunchdPlist generates the launchd job. launchd numbers weekdays from
// Sunday = 0, the same as time.Weekday.
func LaunchdPlist(j Job, logDir string) string {
	var args strings.Builder
	for _, a := range j.args() {
		fmt.Fprintf(&args, "        <string>%s</string>\n", html.EscapeString(a))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
%s    </array>
    <key>StartCalendarInterval</key>
    <dict>
        <key>Weekday</key>
        <integer>%d</integer>
        <key>Hour</key>
        <integer>%d</integer>
        <key>Minute</key>
        <integer>%d</integer>
    </dict>
    <key>RunAtLoad</key>
    <false/>
    <key>StandardOutPath</key>
    <string>%s</string>
    <key>StandardErrorPath</key>
    <string>%s</string>
</dict>
</plist>
`, launchdLabel, args.String(), int(j.Weekday), j.Hour, j.Minute,
		filepath.Join(logDir, Name+".log"), filepath.Join(logDir, Name+".err"))
}

func installLaunchd(j Job) error {
	plistPath := launchdPlistPath()

	if err := os.MkdirAll(filepath.Dir(plistPath), 0o755); err != nil {
		return fmt.Errorf("create plist dir: %w", err)
	}
	if err := os.WriteFile(plistPath, []byte(LaunchdPlist(j, launchdLogDir())), 0o644); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}

	// Reloading picks up a changed schedule.
	_ = runCommand("launchctl", "unload", plistPath)
	if err := runCommand("launchctl", "load", plistPath); err != nil {
		return fmt.Errorf("launchctl load: %w", err)
	}
	return nil
}

func removeLaunchd() error {
	plistPath := launchdPlistPath()
	_ = runCommand("launchctl", "unload", plistPath)
	_ = os.Remove(plistPath)
	return nil
}

func isLaunchdLoaded() bool {
	return exec.Command("launchctl", "list", launchdLabel).Run() == nil
}
