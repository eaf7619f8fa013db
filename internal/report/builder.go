package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/cache"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/inventory"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/uptime"
)

// ErrNoData is returned when a run produced no usable record.
var ErrNoData = errors.New("no devices with a usable boot time")

const progressEvery = 50

// DeviceFetcher returns one device's inventory record.
type DeviceFetcher interface {
	Device(ctx context.Context, id string) (*inventory.Device, error)
}

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	AttributeName   string
	CachePath       string
	CacheTopN       int
	DisplayTopK     int
	RequestInterval time.Duration
	FetchTimeout    time.Duration
}

// Result is the outcome of a successful run.
type Result struct {
	Mode       Mode            `json:"mode"`
	Records    []uptime.Record `json:"records"` // top DisplayTopK, highest uptime first
	Candidates int             `json:"candidates"`
	Valid      int             `json:"valid"`
	Skipped    int             `json:"skipped"`
	CacheSaved bool            `json:"cache_saved"`
	ObservedAt time.Time       `json:"observed_at"`
}

// Builder runs the sequential fetch loop and persists the ranking.
type Builder struct {
	cfg     BuilderConfig
	source  DeviceFetcher
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewBuilder creates a Builder that fetches devices from source.
func NewBuilder(cfg BuilderConfig, source DeviceFetcher, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}

	return &Builder{
		cfg:     cfg,
		source:  source,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.With("component", "report"),
	}
}

// Run fetches every candidate of d one at a time, ranks the devices with a
// valid boot time, saves the top CacheTopN to the cache and returns the top
// DisplayTopK. A device that cannot be fetched or has no usable boot time is
// skipped. When nothing usable remains Run returns ErrNoData and leaves the
// cache untouched.
func (b *Builder) Run(ctx context.Context, d Decision, now time.Time) (*Result, error) {
	res := &Result{Mode: d.Mode, Candidates: len(d.CandidateIDs), ObservedAt: now}
	var records []uptime.Record

	b.log.Info("scan started", "mode", d.Mode, "candidates", len(d.CandidateIDs))

	for i, id := range d.CandidateIDs {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("scan interrupted: %w", err)
		}

		if rec, ok := b.observe(ctx, id, now); ok {
			records = append(records, rec)
		} else {
			res.Skipped++
		}

		if (i+1)%progressEvery == 0 {
			b.log.Info("scan progress", "done", i+1, "total", len(d.CandidateIDs), "valid", len(records))
		}
	}

	res.Valid = len(records)
	if len(records) == 0 {
		b.log.Warn("scan produced no usable records", "candidates", len(d.CandidateIDs), "skipped", res.Skipped)
		return nil, ErrNoData
	}

	uptime.SortByUptime(records)

	if _, err := cache.Save(b.cfg.CachePath, records, now, b.cfg.CacheTopN); err != nil {
		b.log.Error("cache not updated", "path", b.cfg.CachePath, "error", err)
	} else {
		res.CacheSaved = true
		b.log.Debug("cache updated", "path", b.cfg.CachePath, "entries", min(len(records), b.cfg.CacheTopN))
	}

	k := b.cfg.DisplayTopK
	if k <= 0 || k > len(records) {
		k = len(records)
	}
	res.Records = records[:k]

	b.log.Info("scan completed", "mode", d.Mode, "valid", res.Valid, "skipped", res.Skipped)
	return res, nil
}

// observe fetches one device and turns it into a record. The boolean is
// false when the device must be skipped.
func (b *Builder) observe(ctx context.Context, id string, now time.Time) (uptime.Record, bool) {
	log := b.log.With("device_id", id)

	fetchCtx := ctx
	if b.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, b.cfg.FetchTimeout)
		defer cancel()
	}

	dev, err := b.source.Device(fetchCtx, id)
	if err != nil {
		log.Warn("device fetch failed", "error", err)
		return uptime.Record{}, false
	}
	if dev == nil {
		log.Warn("device fetch returned no record")
		return uptime.Record{}, false
	}

	value, ok := dev.Attribute(b.cfg.AttributeName)
	if !ok {
		log.Debug("boot time attribute missing", "attribute", b.cfg.AttributeName)
		return uptime.Record{}, false
	}

	boot, err := uptime.ParseBootTime(value, nil)
	if err != nil {
		log.Debug("boot time unusable", "error", err)
		return uptime.Record{}, false
	}

	devID := dev.ID
	if devID == "" {
		devID = id
	}
	rec, err := uptime.NewRecord(devID, dev.Name, dev.Serial, dev.Username, dev.Email,
		strings.TrimSpace(value), boot, now)
	if err != nil {
		log.Debug("uptime invalid", "error", err)
		return uptime.Record{}, false
	}
	return rec, true
}
