package carrier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "1Z999AA10123456784", Normalize(" 1z 999-aa1.0123456784 "))
	assert.Equal(t, "", Normalize("  -- "))
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		key        Key
		confidence float64
	}{
		{"ups", "1Z999AA10123456784", UPS, 0.95},
		{"ups lowercase spaced", "1z 999 aa1 012 345 6784", UPS, 0.95},
		{"usps 22 digits starting with 9", "9400111899223344556677", USPS, 0.75},
		{"usps 20 digits", "12345678901234567890", USPS, 0.75},
		{"fedex 12", "123456789012", FedEx, 0.7},
		{"fedex 15", "123456789012345", FedEx, 0.7},
		{"dhl 10", "1234567890", DHL, 0.6},
		{"dhl JD", "JD014600006281230704", DHL, 0.6},
		{"unknown 7 digits", "1234567", Unknown, 0.2},
		{"empty", "", Unknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Detect(tt.in)
			assert.Equal(t, tt.key, d.Key)
			assert.Equal(t, tt.confidence, d.Confidence)
		})
	}
}

func TestTrackingURL(t *testing.T) {
	ups := TrackingURL("1Z999AA10123456784")
	assert.True(t, strings.HasPrefix(ups, "https://www.ups.com/track"))
	assert.Contains(t, ups, "tracknum=1Z999AA10123456784")

	unknown := TrackingURL("1234567")
	assert.Equal(t, "https://www.google.com/search?q=1234567+tracking", unknown)

	assert.Equal(t, "", TrackingURL(""))
}

func TestNewShipment(t *testing.T) {
	s := NewShipment("kitOutbound", "1z999aa10123456784")
	assert.Equal(t, "UPS", s.Label)
	assert.Equal(t, "1Z999AA10123456784", s.Number)
	assert.Contains(t, s.URL, s.Number)
	assert.Equal(t, Hint, s.Hint)

	empty := NewShipment("kitReturn", "")
	assert.Empty(t, empty.URL)
	assert.Equal(t, Unknown, empty.Carrier)
}
