// Package report decides which devices to scan, ranks them by uptime and
// renders the result.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/cache"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/inventory"
)

// Mode is the kind of scan a run performs.
type Mode int

const (
	// ModeFull enumerates every device and fetches each one.
	ModeFull Mode = iota
	// ModeQuick fetches only the devices held in the cache.
	ModeQuick
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeQuick:
		return "quick"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name written by MarshalText.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "full":
		*m = ModeFull
	case "quick":
		*m = ModeQuick
	default:
		return fmt.Errorf("unknown scan mode %q", text)
	}
	return nil
}

// Decision is the scan plan for one run.
type Decision struct {
	Mode         Mode
	CandidateIDs []string

	// Cached is false when no cache was found; CacheAgeDays is only
	// meaningful when it is true.
	Cached       bool
	CacheAgeDays int
}

// PlanOptions configures Plan.
type PlanOptions struct {
	ForceFullScan bool
	MaxAgeDays    int
	CacheTopN     int
}

// ListFunc enumerates every known device id. It is only called for full
// scans.
type ListFunc func(ctx context.Context) ([]string, error)

// ListIDs adapts src's enumeration to a ListFunc.
func ListIDs(src inventory.Source) ListFunc {
	return func(ctx context.Context) ([]string, error) {
		summaries, err := src.ListDevices(ctx)
		if err != nil {
			return nil, err
		}
		return inventory.IDs(summaries), nil
	}
}

// Plan chooses between a full and a quick scan. A quick scan happens only
// when a cache with at least one entry exists, the scan is not forced and
// the cache is younger than MaxAgeDays; it targets the cached ids without
// calling listAll.
func Plan(ctx context.Context, c *cache.Cache, opts PlanOptions, now time.Time, listAll ListFunc) (Decision, error) {
	d := Decision{Mode: ModeFull}
	if c != nil {
		d.Cached = true
		d.CacheAgeDays = c.AgeDays(now)
	}

	if !opts.ForceFullScan && c != nil && len(c.Entries) > 0 && c.IsFresh(now, opts.MaxAgeDays) {
		d.Mode = ModeQuick
		d.CandidateIDs = c.TopIDs(opts.CacheTopN)
		return d, nil
	}

	ids, err := listAll(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("enumerate devices: %w", err)
	}
	d.CandidateIDs = ids
	return d, nil
}
