package schedule

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// systemdUnitDir is the system unit directory for root, the user unit
// directory otherwise.
func systemdUnitDir() string {
	if isRoot() {
		return "/etc/systemd/system"
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "systemd", "user")
}

func systemdServicePath() string { return filepath.Join(systemdUnitDir(), Name+".service") }
func systemdTimerPath() string { return filepath.Join(systemdUnitDir(), Name+".timer") }

// systemctl runs systemctl against the system or user manager.
func systemctl(args ...string) error {
	if !isRoot() {
		args = append([]string{"--user"}, args...)
	}
	return runCommand("systemctl", args...)
}

// SystemdService generates the oneshot service unit the timer starts.
func SystemdService(j Job) string {
	return fmt.Sprintf(`[Unit]
Description=Jamf Pro uptime report (full scan)
After=network-online.target
Wants=network-online.target

[Service]
Type=oneshot
ExecStart=%s
NoNewPrivileges=true
PrivateTmp=true
`, systemdCommandLine(j.args()))
}

// systemdCommandLine quotes each argument for an Exec= line so spaces,
// quotes, backslashes, specifiers (%) and variable references ($) are
// taken literally.
func systemdCommandLine(args []string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "%", "%%", "$", "$$")
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = `"` + r.Replace(a) + `"`
	}
	return strings.Join(quoted, " ")
}

// SystemdTimer generates the timer unit. Persistent=true runs a missed
// scan at the next boot.
func SystemdTimer(j Job) string {
	return fmt.Sprintf(`[Unit]
Description=Weekly Jamf Pro uptime full scan

[Timer]
OnCalendar=%s *-*-* %02d:%02d:00
Persistent=true
Unit=%s.service

[Install]
WantedBy=timers.target
`, j.Weekday.String()[:3], j.Hour, j.Minute, Name)
}

func installSystemd(j Job) error {
	if err := os.MkdirAll(systemdUnitDir(), 0o755); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}
	if err := os.WriteFile(systemdServicePath(), []byte(SystemdService(j)), 0o644); err != nil {
		return fmt.Errorf("write service unit: %w", err)
	}
	if err := os.WriteFile(systemdTimerPath(), []byte(SystemdTimer(j)), 0o644); err != nil {
		return fmt.Errorf("write timer unit: %w", err)
	}

	if err := systemctl("daemon-reload"); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	if err := systemctl("enable", "--now", Name+".timer"); err != nil {
		return fmt.Errorf("enable timer: %w", err)
	}
	return nil
}

func removeSystemd() error {
	_ = systemctl("disable", "--now", Name+".timer")
	_ = os.Remove(systemdTimerPath())
	_ = os.Remove(systemdServicePath())
	_ = systemctl("daemon-reload")
	return nil
}

func isSystemdTimerActive() bool {
	args := []string{"is-active", "--quiet", Name + ".timer"}
	if !isRoot() {
		args = append([]string{"--user"}, args...)
	}
	return exec.Command("systemctl", args...).Run() == nil
}
