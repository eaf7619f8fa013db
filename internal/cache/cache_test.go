package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/uptime"
)

func record(t *testing.T, id string, bootText string, now time.Time) uptime.Record {
	t.Helper()

	boot, err := uptime.ParseBootTime(bootText, nil)
	require.NoError(t, err)
	r, err := uptime.NewRecord(id, "mac-"+id, "SER"+id, "user"+id, id+"@example.com", bootText, boot, now)
	require.NoError(t, err)
	return r
}

func TestLoadMissingFileIsAbsent(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.cache"))
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	path := filepath.Join(t.TempDir(), "top.cache")

	records := []uptime.Record{
		record(t, "1", "2024-06-10 12:00:00", now),
		record(t, "2", "2024-05-01 08:30:00", now),
		record(t, "3", "2024-06-14 23:00:00", now),
		record(t, "4", "2024-06-01 00:00:00", now),
	}

	saved, err := Save(path, records, now, 3)
	require.NoError(t, err)
	require.Len(t, saved.Entries, 3)
	assert.Equal(t, []string{"2", "4", "1"}, saved.TopIDs(10))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.Entries, loaded.Entries)
	assert.True(t, loaded.SavedAt.Equal(now), "saved_at = %v, want %v", loaded.SavedAt, now)
	assert.Zero(t, loaded.Skipped)
}

func TestSaveDoesNotReorderInput(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	records := []uptime.Record{
		record(t, "1", "2024-06-14 12:00:00", now),
		record(t, "2", "2024-05-01 12:00:00", now),
	}

	_, err := Save(filepath.Join(t.TempDir(), "top.cache"), records, now, 50)
	require.NoError(t, err)
	assert.Equal(t, "1", records[0].DeviceID)
}

func TestSaveKeepsTiesInScanOrder(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	records := []uptime.Record{
		record(t, "b", "2024-06-10 12:00:00", now),
		record(t, "a", "2024-06-10 11:00:00", now),
		record(t, "c", "2024-06-01 12:00:00", now),
	}

	saved, err := Save(filepath.Join(t.TempDir(), "top.cache"), records, now, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, saved.TopIDs(3))
}

func TestSaveSanitizesSeparator(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	r := record(t, "7", "2024-06-10 12:00:00", now)
	r.Name = "Jane's|MacBook\nPro"

	path := filepath.Join(t.TempDir(), "top.cache")
	_, err := Save(path, []uptime.Record{r}, now, 50)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Entries, 1)
	assert.Equal(t, "Jane's MacBook Pro", loaded.Entries[0].Name)
	assert.Equal(t, "7", loaded.Entries[0].DeviceID)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top.cache")
	content := headerPrefix + "2024-06-15T12:00:00Z\n" +
		"12|jdoe|jdoe@example.com|mac-1|C02A|12d 3h|2024-06-03 09:00:00|1\n" +
		"not a record\n" +
		"x|jdoe|jdoe@example.com|mac-2|C02B|1d 0h|2024-06-14 09:00:00|2\n" +
		"-1|jdoe|jdoe@example.com|mac-3|C02C|1d 0h|2024-06-14 09:00:00|3\n" +
		"4|jdoe|jdoe@example.com|mac-4|C02D|4d 0h|N/A|4\n" +
		"4|jdoe|jdoe@example.com|mac-5|C02E|4d 0h|2024-06-11 09:00:00|\n" +
		"\n" +
		"3|||mac-6|C02F|3d 1h|2024-06-12 09:00:00|6\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "6"}, c.TopIDs(10))
	assert.Equal(t, 5, c.Skipped)
	assert.Equal(t, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC), c.SavedAt.UTC())
	assert.Empty(t, c.Entries[1].Username)
}

func TestLoadSkipsOversizedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top.cache")
	content := headerPrefix + "2024-06-15T12:00:00Z\n" +
		strings.Repeat("x", 200*1024) + "\n" +
		"12|jdoe|jdoe@example.com|mac-1|C02A|12d 3h|2024-06-03 09:00:00|1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, []string{"1"}, c.TopIDs(10))
	assert.Equal(t, 1, c.Skipped)
}

func TestLoadLegacyFileUsesModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top.cache")
	content := "12|jdoe|jdoe@example.com|mac-1|C02A|12d 3h|2024-06-03 09:00:00|1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	mtime := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Entries, 1)
	assert.True(t, c.SavedAt.Equal(mtime))
}

func TestIsFresh(t *testing.T) {
	saved := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &Cache{SavedAt: saved}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just saved", saved, true},
		{"3 days", saved.Add(3 * day), true},
		{"13 days 23h", saved.Add(13*day + 23*time.Hour), true},
		{"exactly 14 days", saved.Add(14 * day), false},
		{"20 days", saved.Add(20 * day), false},
		{"saved in the future", saved.Add(-2 * day), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsFresh(tt.now, 14))
		})
	}
}

func TestTopIDs(t *testing.T) {
	c := &Cache{Entries: []uptime.Record{{DeviceID: "9"}, {DeviceID: "3"}, {DeviceID: "5"}}}

	assert.Equal(t, []string{"9", "3"}, c.TopIDs(2))
	assert.Equal(t, []string{"9", "3", "5"}, c.TopIDs(50))
	assert.Empty(t, c.TopIDs(0))
}

func TestSaveReplacesPreviousCache(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	path := filepath.Join(t.TempDir(), "nested", "top.cache")

	_, err := Save(path, []uptime.Record{record(t, "1", "2024-06-01 12:00:00", now)}, now, 50)
	require.NoError(t, err)
	_, err = Save(path, []uptime.Record{record(t, "2", "2024-06-10 12:00:00", now)}, now.Add(time.Hour), 50)
	require.NoError(t, err)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, c.TopIDs(50))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}
