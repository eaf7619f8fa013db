// Package uptime turns a device's reported boot timestamp into an uptime
// measurement.
package uptime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BootTimeLayout is the format extension attributes report boot time in.
// No zone is included; values are interpreted in the host's local zone.
const BootTimeLayout = "2006-01-02 15:04:05"

const day = 24 * time.Hour

var (
	// ErrBootTimeAbsent means the attribute carried no value at all.
	ErrBootTimeAbsent = errors.New("boot time absent")
	// ErrBootTimeMalformed means the value did not match BootTimeLayout.
	ErrBootTimeMalformed = errors.New("boot time malformed")
	// ErrBootInFuture means the boot instant is later than now.
	ErrBootInFuture = errors.New("boot time is in the future")
)

// absentValues are placeholders Jamf and inventory scripts emit when no
// boot time has been collected yet.
var absentValues = map[string]bool{
	"":     true,
	"N/A":  true,
	"null": true,
}

// ParseBootTime parses an extension attribute value in BootTimeLayout.
// A nil loc means time.Local.
func ParseBootTime(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if absentValues[text] {
		return time.Time{}, ErrBootTimeAbsent
	}
	if loc == nil {
		loc = time.Local
	}

	t, err := time.ParseInLocation(BootTimeLayout, text, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBootTimeMalformed, text)
	}
	return t, nil
}

// Uptime is the elapsed time between a boot and an observation.
type Uptime struct {
	Elapsed time.Duration
	Days    int
	Hours   int
}

// Compute returns the uptime of a device that booted at boot, observed at now.
func Compute(boot, now time.Time) (Uptime, error) {
	elapsed := now.Sub(boot)
	if elapsed < 0 {
		return Uptime{}, fmt.Errorf("%w: boot %s, now %s", ErrBootInFuture,
			boot.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	return Uptime{
		Elapsed: elapsed,
		Days:    int(elapsed / day),
		Hours:   int((elapsed % day) / time.Hour),
	}, nil
}

// Display formats the uptime as "Nd Hh".
func (u Uptime) Display() string {
	return fmt.Sprintf("%dd %dh", u.Days, u.Hours)
}
