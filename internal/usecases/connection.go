package usecases

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"evolution_relay/internal/entities"

	"github.com/skip2/go-qrcode"
)

const qrDataURIPrefix = "data:image/png;base64,"

// Gateway connection states
const (
	stateOpen         = "open"
	stateConnected    = "CONNECTED"
	stateClose        = "close"
	stateDisconnected = "DISCONNECTED"
	stateConnecting   = "CONNECTING"
)

var ErrNoQRCode = errors.New("no qr code available")

type connectionData struct {
	State             string          `json:"state"`
	Connection        string          `json:"connection"`
	ProfileName       string          `json:"profileName"`
	ProfilePictureURL string          `json:"profilePictureUrl"`
	Instance          json.RawMessage `json:"instance"`
}

type connectionProfile struct {
	ProfileName       string `json:"profileName"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}

// BuildInstanceUpdate translates a connection-class event into the
// instance fields it changes.
func BuildInstanceUpdate(event string, data json.RawMessage, now time.Time) (entities.InstanceUpdate, error) {
	var u entities.InstanceUpdate
	switch entities.CanonicalEventName(event) {
	case entities.EventQRCodeUpdated:
		qr, err := ExtractQRCode(data)
		if err != nil {
			return u, err
		}
		if qr != "" {
			u.QRCode = &qr
		}
		u.Status = strPtr(entities.InstanceConnecting)
		u.ConnectionState = strPtr(stateConnecting)

	case entities.EventConnectionUpdate:
		var cd connectionData
		if len(data) > 0 && !isJSONNull(data) {
			if err := json.Unmarshal(data, &cd); err != nil {
				return u, fmt.Errorf("decode connection update: %w", err)
			}
		}
		state := cd.State
		if state == "" {
			state = cd.Connection
		}
		if state == "" {
			state = stateDisconnected
		}
		u.ConnectionState = &state

		switch state {
		case stateOpen, stateConnected:
			u.Status = strPtr(entities.InstanceConnected)
			u.ClearQRCode = true
			u.LastConnectedAt = &now
			profile := cd.profile()
			if profile.ProfileName != "" {
				u.ProfileName = &profile.ProfileName
			}
			if profile.ProfilePictureURL != "" {
				u.ProfilePictureURL = &profile.ProfilePictureURL
			}
		case stateClose, stateDisconnected:
			u.Status = strPtr(entities.InstanceDisconnected)
			u.ClearQRCode = true
		}

	case entities.EventApplicationStartup:
		u.Status = strPtr(entities.InstanceStarting)
	}
	return u, nil
}

// profile prefers the nested instance object and falls back to the flat fields.
func (cd connectionData) profile() connectionProfile {
	p := connectionProfile{ProfileName: cd.ProfileName, ProfilePictureURL: cd.ProfilePictureURL}
	trimmed := bytes.TrimSpace(cd.Instance)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return p
	}
	var nested connectionProfile
	if err := json.Unmarshal(trimmed, &nested); err != nil {
		return p
	}
	if nested.ProfileName != "" {
		p.ProfileName = nested.ProfileName
	}
	if nested.ProfilePictureURL != "" {
		p.ProfilePictureURL = nested.ProfilePictureURL
	}
	return p
}

type qrObject struct {
	QRCode json.RawMessage `json:"qrcode"`
	Base64 string          `json:"base64"`
	Code   string          `json:"code"`
}

// ExtractQRCode pulls the QR image out of a QRCODE_UPDATED data value and
// returns it as a data URI. The gateway sends either a bare string, an
// object with qrcode/base64, or a nested qrcode object. When only the raw
// pairing text is present it is rendered to a PNG. An empty result means
// the event carried no code.
func ExtractQRCode(data json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || isJSONNull(trimmed) {
		return "", nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("decode qr code: %w", err)
		}
		return NormalizeQRCode(s), nil
	}

	var obj qrObject
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return "", fmt.Errorf("decode qr code: %w", err)
	}

	code := obj.Code
	if q := bytes.TrimSpace(obj.QRCode); len(q) > 0 && !isJSONNull(q) {
		if q[0] == '"' {
			var s string
			if err := json.Unmarshal(q, &s); err == nil && s != "" {
				return NormalizeQRCode(s), nil
			}
		} else {
			var nested qrObject
			if err := json.Unmarshal(q, &nested); err == nil {
				if nested.Base64 != "" && obj.Base64 == "" {
					obj.Base64 = nested.Base64
				}
				if code == "" {
					code = nested.Code
				}
			}
		}
	}
	if obj.Base64 != "" {
		return NormalizeQRCode(obj.Base64), nil
	}
	if code != "" {
		return RenderQRCode(code)
	}
	return "", nil
}

// NormalizeQRCode ensures v is a data URI.
func NormalizeQRCode(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "data:image/") {
		return v
	}
	return qrDataURIPrefix + v
}

// RenderQRCode encodes raw pairing text as a PNG data URI.
func RenderQRCode(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	return qrDataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// DecodeQRDataURI returns the image bytes of a stored QR data URI.
func DecodeQRDataURI(uri string) ([]byte, error) {
	if uri == "" {
		return nil, ErrNoQRCode
	}
	payload := uri
	if strings.HasPrefix(uri, "data:") {
		idx := strings.Index(uri, ",")
		if idx < 0 {
			return nil, errors.New("malformed data uri")
		}
		payload = uri[idx+1:]
	}
	img, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode qr image: %w", err)
	}
	return img, nil
}

func isJSONNull(b []byte) bool {
	return string(bytes.TrimSpace(b)) == "null"
}

func strPtr(s string) *string { return &s }
