// Package schedule installs a recurring full-scan run of jamf-uptime as a
// systemd timer (Linux) or launchd job (macOS).
package schedule

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Name is the systemd unit and log file base name.
const Name = "jamf-uptime"

// Job describes the recurring run.
type Job struct {
	BinaryPath string
	ConfigPath string
	Weekday    time.Weekday
	Hour       int
	Minute     int
}

// Status holds the current state of the installed job.
type Status struct {
	Installed bool
	Active    bool
	UnitPath  string
	Platform  string
}

// Validate checks the time fields.
func (j Job) Validate() error {
	if j.BinaryPath == "" {
		return fmt.Errorf("binary path is required")
	}
	if j.ConfigPath == "" {
		return fmt.Errorf("config path is required")
	}
	if j.Weekday < time.Sunday || j.Weekday > time.Saturday {
		return fmt.Errorf("invalid weekday %d", j.Weekday)
	}
	if j.Hour < 0 || j.Hour > 23 {
		return fmt.Errorf("hour must be 0-23, got %d", j.Hour)
	}
	if j.Minute < 0 || j.Minute > 59 {
		return fmt.Errorf("minute must be 0-59, got %d", j.Minute)
	}
	return nil
}

// args returns the command line the job runs.
func (j Job) args() []string {
	return []string{j.BinaryPath, "--full-scan", "--config", j.ConfigPath, "--log-format", "json"}
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// BinaryPath returns the absolute path of the currently running binary.
func BinaryPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	return filepath.EvalSymlinks(exe)
}

// Install writes and activates the job for the current platform.
func Install(j Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	switch runtime.GOOS {
	case "linux":
		return installSystemd(j)
	case "darwin":
		return installLaunchd(j)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Remove deactivates and deletes the job.
func Remove() error {
	switch runtime.GOOS {
	case "linux":
		return removeSystemd()
	case "darwin":
		return removeLaunchd()
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// CurrentStatus reports whether the job is installed and loaded.
func CurrentStatus() Status {
	s := Status{Platform: runtime.GOOS}
	switch runtime.GOOS {
	case "linux":
		s.UnitPath = systemdTimerPath()
		s.Active = isSystemdTimerActive()
	case "darwin":
		s.UnitPath = launchdPlistPath()
		s.Active = isLaunchdLoaded()
	default:
		return s
	}
	_, err := os.Stat(s.UnitPath)
	s.Installed = err == nil
	return s
}

// runCommand runs a command and returns any error.
func runCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func isRoot() bool {
	return os.Getuid() == 0
}
