package uptime

import (
	"sort"
	"time"
)

// Record is one observation of a device's uptime at scan time.
type Record struct {
	DeviceID string    `json:"device_id"`
	Name     string    `json:"name"`
	Serial   string    `json:"serial_number"`
	Username string    `json:"username,omitempty"`
	Email    string    `json:"email,omitempty"`
	BootTime time.Time `json:"boot_time"`
	BootText string    `json:"boot_time_text"`
	Days     int       `json:"uptime_days"`
	Display  string    `json:"uptime"`
}

// NewRecord computes the uptime for a device observed at now. It fails when
// the boot instant lies after now.
func NewRecord(id, name, serial, username, email, bootText string, boot, now time.Time) (Record, error) {
	u, err := Compute(boot, now)
	if err != nil {
		return Record{}, err
	}

	return Record{
		DeviceID: id,
		Name:     name,
		Serial:   serial,
		Username: username,
		Email:    email,
		BootTime: boot,
		BootText: bootText,
		Days:     u.Days,
		Display:  u.Display(),
	}, nil
}

// SortByUptime orders records by descending uptime days. Ties keep their
// original order.
func SortByUptime(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Days > records[j].Days
	})
}
