package jamf

import (
	"bytes"
	"encoding/json"
	"strings"
)

// TokenResponse is returned by /api/v1/auth/token.
type TokenResponse struct {
	Token   string `json:"token"`
	Expires string `json:"expires"`
}

// computersResponse is the body of /JSSResource/computers/subset/basic.
type computersResponse struct {
	Computers []struct {
		ID           int    `json:"id"`
		Name         string `json:"name"`
		SerialNumber string `json:"serial_number"`
	} `json:"computers"`
}

// computerResponse is the body of /JSSResource/computers/id/{id}.
type computerResponse struct {
	Computer *struct {
		General struct {
			ID           int    `json:"id"`
			Name         string `json:"name"`
			SerialNumber string `json:"serial_number"`
		} `json:"general"`
		Location struct {
			Username     string `json:"username"`
			RealName     string `json:"real_name"`
			EmailAddress string `json:"email_address"`
		} `json:"location"`
		ExtensionAttributes []extensionAttribute `json:"extension_attributes"`
	} `json:"computer"`
}

type extensionAttribute struct {
	ID    int            `json:"id"`
	Name  string         `json:"name"`
	Type  string         `json:"type"`
	Value attributeValue `json:"value"`
}

// attributeValue accepts the string, number and null values Jamf returns
// for extension attributes of different data types.
type attributeValue struct {
	Text  string
	Valid bool
}

func (v *attributeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = attributeValue{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = attributeValue{Text: s, Valid: true}
		return nil
	}

	*v = attributeValue{Text: strings.TrimSpace(string(data)), Valid: true}
	return nil
}
