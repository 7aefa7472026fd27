package network

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Downlink is a unicast payload for one device.
//
// FCnt and FPort are mandatory. Exactly one of Data (base64) or JSONData
// carries the payload.
type Downlink struct {
	FCnt     *int           `json:"fCnt"`
	FPort    *int           `json:"fPort"`
	Data     *string        `json:"data,omitempty"`
	JSONData map[string]any `json:"jsonData,omitempty"`
}

// NewDownlink builds a downlink carrying raw bytes.
func NewDownlink(fCnt, fPort int, data []byte) Downlink {
	encoded := base64.StdEncoding.EncodeToString(data)
	return Downlink{FCnt: &fCnt, FPort: &fPort, Data: &encoded}
}

// NewJSONDownlink builds a downlink carrying structured data.
func NewJSONDownlink(fCnt, fPort int, data map[string]any) Downlink {
	return Downlink{FCnt: &fCnt, FPort: &fPort, JSONData: data}
}

// Validate checks the downlink shape.
func (d Downlink) Validate() error {
	switch {
	case d.FCnt == nil:
		return fmt.Errorf("%w: \"fCnt\" is required", ErrInvalidDownlink)
	case *d.FCnt < 0:
		return fmt.Errorf("%w: \"fCnt\" must be larger than or equal to 0", ErrInvalidDownlink)
	case d.FPort == nil:
		return fmt.Errorf("%w: \"fPort\" is required", ErrInvalidDownlink)
	case *d.FPort < 1:
		return fmt.Errorf("%w: \"fPort\" must be larger than or equal to 1", ErrInvalidDownlink)
	case d.Data == nil && d.JSONData == nil:
		return fmt.Errorf("%w: one of \"data\" or \"jsonData\" is required", ErrInvalidDownlink)
	case d.Data != nil && d.JSONData != nil:
		return fmt.Errorf("%w: \"data\" and \"jsonData\" are mutually exclusive", ErrInvalidDownlink)
	}
	if d.Data != nil {
		if _, err := base64.StdEncoding.DecodeString(*d.Data); err != nil {
			return fmt.Errorf("%w: \"data\" must be base64: %v", ErrInvalidDownlink, err)
		}
	}
	return nil
}

// Payload returns the bytes to put on air: the decoded Data, or the JSON
// encoding of JSONData.
func (d Downlink) Payload() ([]byte, error) {
	if d.Data != nil {
		b, err := base64.StdEncoding.DecodeString(*d.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding data: %v", ErrInvalidDownlink, err)
		}
		return b, nil
	}
	b, err := json.Marshal(d.JSONData)
	if err != nil {
		return nil, fmt.Errorf("encoding jsonData: %w", err)
	}
	return b, nil
}
