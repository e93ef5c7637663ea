// Package carrier guesses the shipping carrier of a tracking number from its
// shape. Nothing here talks to a carrier.
package carrier

import (
	"net/url"
	"regexp"
	"strings"
)

type Key string

const (
	Unknown Key = "unknown"
	UPS     Key = "ups"
	USPS    Key = "usps"
	FedEx   Key = "fedex"
	DHL     Key = "dhl"
)

// Hint is shown next to freshly created tracking links.
const Hint = "Tracking links may take a few hours to activate. The first scan often appears after pickup."

type Detection struct {
	Key        Key     `json:"key"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type rule struct {
	patterns  []*regexp.Regexp
	detection Detection
}

// Order matters: a 20 or 22 digit number is claimed by USPS before FedEx.
var rules = []rule{
	{
		patterns:  []*regexp.Regexp{regexp.MustCompile(`^1Z[0-9A-Z]{16}$`)},
		detection: Detection{Key: UPS, Label: "UPS", Confidence: 0.95},
	},
	{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^9\d{19,21}$`),
			regexp.MustCompile(`^\d{20,22}$`),
		},
		detection: Detection{Key: USPS, Label: "USPS", Confidence: 0.75},
	},
	{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^\d{12}$`),
			regexp.MustCompile(`^\d{15}$`),
		},
		detection: Detection{Key: FedEx, Label: "FedEx", Confidence: 0.7},
	},
	{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^\d{10}$`),
			regexp.MustCompile(`^JD\d{16,18}$`),
		},
		detection: Detection{Key: DHL, Label: "DHL", Confidence: 0.6},
	},
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// Normalize strips whitespace and punctuation and uppercases the rest.
func Normalize(raw string) string {
	return strings.ToUpper(nonAlnum.ReplaceAllString(strings.TrimSpace(raw), ""))
}

func Detect(raw string) Detection {
	t := Normalize(raw)
	if t == "" {
		return Detection{Key: Unknown, Label: "Carrier", Confidence: 0}
	}
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(t) {
				return r.detection
			}
		}
	}
	return Detection{Key: Unknown, Label: "Carrier", Confidence: 0.2}
}

// TrackingURL links to the carrier's tracking page, or to a web search when
// the carrier is unknown. Empty input yields "".
func TrackingURL(raw string) string {
	t := Normalize(raw)
	if t == "" {
		return ""
	}
	q := url.QueryEscape(t)
	switch Detect(t).Key {
	case UPS:
		return "https://www.ups.com/track?loc=en_US&tracknum=" + q
	case USPS:
		return "https://tools.usps.com/go/TrackConfirmAction?tLabels=" + q
	case FedEx:
		return "https://www.fedex.com/fedextrack/?trknbr=" + q
	case DHL:
		return "https://www.dhl.com/global-en/home/tracking.html?tracking-id=" + q
	default:
		return "https://www.google.com/search?q=" + url.QueryEscape(t+" tracking")
	}
}

// Shipment is the display card for one tracking slot.
type Shipment struct {
	Slot       string  `json:"slot"`
	Number     string  `json:"number"`
	Carrier    Key     `json:"carrier"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	URL        string  `json:"url,omitempty"`
	Hint       string  `json:"hint,omitempty"`
}

func NewShipment(slot, raw string) Shipment {
	t := Normalize(raw)
	d := Detect(t)
	s := Shipment{
		Slot:       slot,
		Number:     t,
		Carrier:    d.Key,
		Label:      d.Label,
		Confidence: d.Confidence,
	}
	if t != "" {
		s.URL = TrackingURL(t)
		s.Hint = Hint
	}
	return s
}
