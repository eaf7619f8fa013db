// Package inventory defines the device-management collaborators the
// report depends on.
package inventory

import "context"

// Summary identifies a managed device in an enumeration.
type Summary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Serial string `json:"serial_number"`
}

// Attribute is a named custom inventory field (an extension attribute).
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Device is one device's full inventory record.
type Device struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Serial     string      `json:"serial_number"`
	Username   string      `json:"username,omitempty"`
	Email      string      `json:"email,omitempty"`
	Attributes []Attribute `json:"extension_attributes,omitempty"`
}

// Attribute returns the value of the extension attribute named exactly name.
func (d *Device) Attribute(name string) (string, bool) {
	for _, a := range d.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Source enumerates devices and fetches their records.
type Source interface {
	// ListDevices returns every managed device.
	ListDevices(ctx context.Context) ([]Summary, error)

	// Device returns the full record for one device.
	Device(ctx context.Context, id string) (*Device, error)
}

// IDs returns the ids of summaries in order.
func IDs(summaries []Summary) []string {
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids
}
