// Package cache persists the top-N uptime records of the last report run.
//
// The file is line oriented. The first line is a header carrying the save
// time; every following line is one record:
//
//	uptimeDays|username|email|displayName|serialNumber|uptimeDisplay|bootTimeText|deviceId
//
// Files written by older versions have no header; their modification time
// stands in for the save time.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/uptime"
)

const (
	headerPrefix = "# jamf-uptime cache saved_at="
	separator    = "|"
	fieldCount   = 8
	day          = 24 * time.Hour
)

var errMalformedLine = errors.New("malformed cache line")

// Cache is the ranked snapshot written at the end of a run.
type Cache struct {
	Entries []uptime.Record
	SavedAt time.Time
	// Skipped counts lines dropped while loading.
	Skipped int
}

// Load reads the cache at path. A missing file is not an error: Load returns
// nil, nil so callers can treat the cache as absent.
func Load(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}

	c := &Cache{}
	first := true
	for line := range strings.Lines(string(data)) {
		line = strings.TrimRight(line, "\r\n")
		if first {
			first = false
			if ts, ok := strings.CutPrefix(line, headerPrefix); ok {
				if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
					c.SavedAt = t
				}
				continue
			}
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := decodeLine(line)
		if err != nil {
			c.Skipped++
			slog.Debug("skipping cache line", "component", "cache", "path", path, "error", err)
			continue
		}
		c.Entries = append(c.Entries, rec)
	}

	if c.SavedAt.IsZero() {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat cache %s: %w", path, err)
		}
		c.SavedAt = info.ModTime()
	}

	return c, nil
}

// AgeDays returns the number of whole days since the cache was saved.
// A save time in the future counts as zero.
func (c *Cache) AgeDays(now time.Time) int {
	age := now.Sub(c.SavedAt)
	if age < 0 {
		return 0
	}
	return int(age / day)
}

// IsFresh reports whether the cache is younger than maxAgeDays. A cache
// exactly maxAgeDays old is stale.
func (c *Cache) IsFresh(now time.Time, maxAgeDays int) bool {
	return c.AgeDays(now) < maxAgeDays
}

// TopIDs returns the ids of the first n entries in stored order, or all of
// them when the cache holds fewer.
func (c *Cache) TopIDs(n int) []string {
	if n > len(c.Entries) {
		n = len(c.Entries)
	}
	if n < 0 {
		n = 0
	}
	ids := make([]string, 0, n)
	for _, e := range c.Entries[:n] {
		ids = append(ids, e.DeviceID)
	}
	return ids
}

// Save ranks records by uptime, keeps the first n and atomically replaces
// the cache at path. records is not modified. A non-positive n keeps all
// records.
func Save(path string, records []uptime.Record, now time.Time, n int) (*Cache, error) {
	ranked := make([]uptime.Record, len(records))
	copy(ranked, records)
	uptime.SortByUptime(ranked)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	var buf bytes.Buffer
	buf.WriteString(headerPrefix + now.Format(time.RFC3339Nano) + "\n")
	for _, r := range ranked {
		buf.WriteString(encodeLine(r))
		buf.WriteByte('\n')
	}

	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return nil, err
	}

	return &Cache{Entries: ranked, SavedAt: now}, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary cache: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temporary cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temporary cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temporary cache: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("persist cache %s: %w", path, err)
	}
	return nil
}

func encodeLine(r uptime.Record) string {
	fields := []string{
		strconv.Itoa(r.Days),
		r.Username,
		r.Email,
		r.Name,
		r.Serial,
		r.Display,
		r.BootText,
		r.DeviceID,
	}
	for i, f := range fields {
		fields[i] = sanitize(f)
	}
	return strings.Join(fields, separator)
}

// sanitize keeps the separator and line breaks out of stored values.
func sanitize(s string) string {
	return strings.NewReplacer(separator, " ", "\n", " ", "\r", " ").Replace(s)
}

func decodeLine(line string) (uptime.Record, error) {
	f := strings.Split(line, separator)
	if len(f) != fieldCount {
		return uptime.Record{}, fmt.Errorf("%w: %d fields", errMalformedLine, len(f))
	}

	days, err := strconv.Atoi(f[0])
	if err != nil || days < 0 {
		return uptime.Record{}, fmt.Errorf("%w: uptime days %q", errMalformedLine, f[0])
	}
	if f[7] == "" {
		return uptime.Record{}, fmt.Errorf("%w: empty device id", errMalformedLine)
	}
	boot, err := uptime.ParseBootTime(f[6], nil)
	if err != nil {
		return uptime.Record{}, fmt.Errorf("%w: %v", errMalformedLine, err)
	}

	return uptime.Record{
		Days:     days,
		Username: f[1],
		Email:    f[2],
		Name:     f[3],
		Serial:   f[4],
		Display:  f[5],
		BootText: f[6],
		BootTime: boot,
		DeviceID: f[7],
	}, nil
}
