package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/cache"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/inventory"
)

// Options configures a Reporter.
type Options struct {
	BuilderConfig
	ForceFullScan bool
	MaxAgeDays    int
}

// Reporter ties together cache loading, scan planning and the fetch loop.
type Reporter struct {
	source inventory.Source
	opts   Options
	log    *slog.Logger
}

// NewReporter creates a Reporter reading devices from source.
func NewReporter(source inventory.Source, opts Options, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{source: source, opts: opts, log: logger}
}

// Run performs one report run observed at now.
func (r *Reporter) Run(ctx context.Context, now time.Time) (*Result, error) {
	c, err := cache.Load(r.opts.CachePath)
	if err != nil {
		r.log.Warn("cache unreadable, treating as absent", "path", r.opts.CachePath, "error", err)
		c = nil
	}
	if c != nil && c.Skipped > 0 {
		r.log.Warn("cache contained malformed lines", "path", r.opts.CachePath, "skipped", c.Skipped)
	}

	d, err := Plan(ctx, c, PlanOptions{
		ForceFullScan: r.opts.ForceFullScan,
		MaxAgeDays:    r.opts.MaxAgeDays,
		CacheTopN:     r.opts.CacheTopN,
	}, now, ListIDs(r.source))
	if err != nil {
		return nil, err
	}

	r.log.Info("scan planned",
		"mode", d.Mode,
		"candidates", len(d.CandidateIDs),
		"cached", d.Cached,
		"cache_age_days", d.CacheAgeDays,
		"forced", r.opts.ForceFullScan)

	return NewBuilder(r.opts.BuilderConfig, r.source, r.log).Run(ctx, d, now)
}
