package orders

import (
	"crypto/rand"
	"encoding/base64"
	"net/url"
	"strings"
)

const tokenBytes = 24

// NewToken returns 24 random bytes as unpadded base64url.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type Mode string

const (
	ModeVendorPortal Mode = "vendor_portal"
	ModeTracking     Mode = "tracking"
)

// ModeFor picks the view a link opens: the tracking page for a token, the
// vendor portal otherwise.
func ModeFor(token string) Mode {
	if strings.TrimSpace(token) == "" {
		return ModeVendorPortal
	}
	return ModeTracking
}

// ShareURL builds the customer link <origin><path>?t=<token>. Any query or
// fragment on base is dropped.
func ShareURL(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "?t=" + url.QueryEscape(token)
	}
	u.RawQuery = url.Values{"t": {token}}.Encode()
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
