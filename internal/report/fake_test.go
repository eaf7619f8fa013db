package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/inventory"
	"github.com/escape-velocity-ventures/jamf-uptime/internal/uptime"
)

var errFetchFailed = errors.New("fetch failed")

// fakeSource is an in-memory inventory.Source that records its calls.
type fakeSource struct {
	mu       sync.Mutex
	order    []string
	devices  map[string]*inventory.Device
	errs     map[string]error
	listErr  error
	listed   int
	fetched  []string
	slowID   string
	slowWait time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		devices: map[string]*inventory.Device{},
		errs:    map[string]error{},
	}
}

// add registers a device whose boot-time attribute holds value. An empty
// value registers the device without the attribute.
func (f *fakeSource) add(id, value string) {
	dev := &inventory.Device{
		ID:       id,
		Name:     "mac-" + id,
		Serial:   "SER" + id,
		Username: "user" + id,
	}
	if value != "" {
		dev.Attributes = []inventory.Attribute{{Name: "Uptime", Value: value}}
	}
	f.order = append(f.order, id)
	f.devices[id] = dev
}

func (f *fakeSource) fail(id string) {
	f.order = append(f.order, id)
	f.errs[id] = errFetchFailed
}

func (f *fakeSource) ListDevices(_ context.Context) ([]inventory.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listed++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]inventory.Summary, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, inventory.Summary{ID: id})
	}
	return out, nil
}

func (f *fakeSource) Device(ctx context.Context, id string) (*inventory.Device, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	slow := id == f.slowID
	f.mu.Unlock()

	if slow {
		select {
		case <-time.After(f.slowWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	dev, ok := f.devices[id]
	if !ok {
		return nil, errFetchFailed
	}
	return dev, nil
}

func (f *fakeSource) fetchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bootDaysAgo formats a boot time days (plus an hour) before now.
func bootDaysAgo(now time.Time, days int) string {
	return now.Add(-time.Duration(days)*24*time.Hour - time.Hour).Format(uptime.BootTimeLayout)
}

func recordIDs(records []uptime.Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.DeviceID)
	}
	return ids
}
