package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/cache"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/uptime"
)

func reporterOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		BuilderConfig: BuilderConfig{
			AttributeName: "Uptime",
			CachePath:     filepath.Join(t.TempDir(), "top.cache"),
			CacheTopN:     50,
			DisplayTopK:   25,
		},
		MaxAgeDays: 14,
	}
}

// No cache, three devices, two of them with a boot time.
func TestReporterFirstRunFullScan(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	src := newFakeSource()
	src.add("five", bootDaysAgo(now, 5))
	src.add("none", "")
	src.add("ten", bootDaysAgo(now, 10))

	opts := reporterOptions(t)
	res, err := NewReporter(src, opts, quietLogger()).Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, ModeFull, res.Mode)
	assert.Equal(t, 1, src.listed)
	assert.Equal(t, []string{"ten", "five"}, recordIDs(res.Records))

	c, err := cache.Load(opts.CachePath)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, []string{"ten", "five"}, c.TopIDs(50))
}

// Fresh cache: only the cached top ids are fetched, no enumeration.
func TestReporterQuickScanUsesCache(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	opts := reporterOptions(t)
	opts.CacheTopN = 2

	var seeded []uptime.Record
	for _, id := range []string{"a", "b", "c"} {
		r, err := uptime.NewRecord(id, "", "", "", "", "2024-05-01 00:00:00",
			time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local), now.Add(-3*24*time.Hour))
		require.NoError(t, err)
		seeded = append(seeded, r)
	}
	_, err := cache.Save(opts.CachePath, seeded, now.Add(-3*24*time.Hour), 50)
	require.NoError(t, err)

	src := newFakeSource()
	for _, id := range []string{"a", "b", "c", "d"} {
		src.add(id, bootDaysAgo(now, 20))
	}

	res, err := NewReporter(src, opts, quietLogger()).Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, ModeQuick, res.Mode)
	assert.Zero(t, src.listed, "quick scan must not enumerate")
	assert.Equal(t, []string{"a", "b"}, src.fetchedIDs())

	c, err := cache.Load(opts.CachePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.TopIDs(50), "cache replaced, not merged")
	assert.True(t, c.SavedAt.Equal(now))
}

// Every fetch fails: no data, and the previous cache is left byte-for-byte.
func TestReporterAllFetchesFail(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	opts := reporterOptions(t)
	opts.ForceFullScan = true

	prev, err := uptime.NewRecord("old", "old-mac", "S0", "u", "e", "2024-01-01 00:00:00",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local), now)
	require.NoError(t, err)
	_, err = cache.Save(opts.CachePath, []uptime.Record{prev}, now.Add(-time.Hour), 50)
	require.NoError(t, err)
	before, err := os.ReadFile(opts.CachePath)
	require.NoError(t, err)

	src := newFakeSource()
	src.fail("1")
	src.fail("2")
	src.fail("3")

	_, err = NewReporter(src, opts, quietLogger()).Run(context.Background(), now)
	require.ErrorIs(t, err, ErrNoData)

	after, err := os.ReadFile(opts.CachePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// A literal "null" attribute value counts as absent.
func TestReporterNullAttributeExcluded(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	src := newFakeSource()
	src.add("nulled", "null")
	src.add("ok", bootDaysAgo(now, 1))

	res, err := NewReporter(src, reporterOptions(t), quietLogger()).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, recordIDs(res.Records))
	assert.Equal(t, 1, res.Skipped)
}

func TestReporterStaleCacheTriggersFullScan(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	opts := reporterOptions(t)

	r, err := uptime.NewRecord("cached", "", "", "", "", "2024-05-01 00:00:00",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local), now)
	require.NoError(t, err)
	_, err = cache.Save(opts.CachePath, []uptime.Record{r}, now.Add(-14*24*time.Hour), 50)
	require.NoError(t, err)

	src := newFakeSource()
	src.add("cached", bootDaysAgo(now, 2))
	src.add("new", bootDaysAgo(now, 9))

	res, err := NewReporter(src, opts, quietLogger()).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, ModeFull, res.Mode)
	assert.Equal(t, 1, src.listed)
	assert.Equal(t, []string{"new", "cached"}, recordIDs(res.Records))
}

func TestReporterEnumerationFailure(t *testing.T) {
	src := newFakeSource()
	src.listErr = errors.New("HTTP 500")

	_, err := NewReporter(src, reporterOptions(t), quietLogger()).Run(context.Background(), time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), "enumerate devices")
}

func TestReporterUnreadableCacheTreatedAsAbsent(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	opts := reporterOptions(t)
	require.NoError(t, os.Mkdir(opts.CachePath, 0o700))

	src := newFakeSource()
	src.add("1", bootDaysAgo(now, 2))

	res, err := NewReporter(src, opts, quietLogger()).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, ModeFull, res.Mode)
	assert.False(t, res.CacheSaved)
}

// A fresh header followed only by garbage must not block the report.
func TestReporterFreshCacheWithoutEntriesScansFleet(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	opts := reporterOptions(t)

	header := fmt.Sprintf("# jamf-uptime cache saved_at=%s\n", now.Add(-24*time.Hour).Format(time.RFC3339Nano))
	require.NoError(t, os.WriteFile(opts.CachePath, []byte(header+"garbage\nnot|enough|fields\n"), 0o600))

	src := newFakeSource()
	src.add("1", bootDaysAgo(now, 4))
	src.add("2", bootDaysAgo(now, 9))

	res, err := NewReporter(src, opts, quietLogger()).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, ModeFull, res.Mode)
	assert.Equal(t, 1, src.listed)
	assert.Equal(t, []string{"2", "1"}, recordIDs(res.Records))

	c, err := cache.Load(opts.CachePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, c.TopIDs(50))
	assert.Zero(t, c.Skipped)
}
