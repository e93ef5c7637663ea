// Package workflow holds the ordered phase catalog an order moves through and
// the rules for moving between phases.
package workflow

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	StatusCreated          = "created"
	StatusAddressCaptured  = "address_captured"
	StatusKitShipped       = "kit_shipped"
	StatusKitDelivered     = "kit_delivered"
	StatusPhotosSubmitted  = "photos_submitted"
	StatusPhotosReviewed   = "photos_reviewed"
	StatusMoldInTransit    = "mold_in_transit"
	StatusMoldReceived     = "mold_received"
	StatusProduction       = "production"
	StatusProductShipped   = "product_shipped"
	StatusProductDelivered = "product_delivered"
	StatusPaidComplete     = "paid_complete"
)

// MinProgress keeps the progress bar visible for the first phase.
const MinProgress = 0.05

var (
	ErrUnknownStatus = errors.New("unknown status")
	ErrBackwards     = errors.New("status cannot move backwards")
)

type Phase struct {
	ID          string `mapstructure:"id" json:"id"`
	Label       string `mapstructure:"label" json:"label"`
	Description string `mapstructure:"description" json:"description"`
}

// DefaultPhases is the production-kit flow used when no catalog is configured.
var DefaultPhases = []Phase{
	{ID: StatusCreated, Label: "Created", Description: "Order created"},
	{ID: StatusAddressCaptured, Label: "Address", Description: "Shipping address confirmed"},
	{ID: StatusKitShipped, Label: "Kit shipped", Description: "Kit is on the way"},
	{ID: StatusKitDelivered, Label: "Kit delivered", Description: "Customer has kit"},
	{ID: StatusPhotosSubmitted, Label: "Photos submitted", Description: "Photos received for review"},
	{ID: StatusPhotosReviewed, Label: "Photos reviewed", Description: "Approved or needs changes"},
	{ID: StatusMoldInTransit, Label: "Mold return", Description: "Mold heading back"},
	{ID: StatusMoldReceived, Label: "Mold received", Description: "Mold arrived"},
	{ID: StatusProduction, Label: "Making magic", Description: "Creating your piece"},
	{ID: StatusProductShipped, Label: "Shipped", Description: "Final product on the way"},
	{ID: StatusProductDelivered, Label: "Delivered", Description: "Delivered to you"},
	{ID: StatusPaidComplete, Label: "Complete", Description: "All set"},
}

// requiredPhases are the ids that automatic events write.
var requiredPhases = []string{
	StatusCreated,
	StatusAddressCaptured,
	StatusPhotosSubmitted,
	StatusPhotosReviewed,
	StatusPaidComplete,
}

type Policy int

const (
	// PolicyFree allows any known phase to be set from any phase.
	PolicyFree Policy = iota
	// PolicyForward rejects moves to an earlier phase.
	PolicyForward
)

func (p Policy) String() string {
	if p == PolicyForward {
		return "forward"
	}
	return "free"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "free":
		return PolicyFree, nil
	case "forward":
		return PolicyForward, nil
	default:
		return PolicyFree, fmt.Errorf("unsupported workflow policy %q", s)
	}
}

type Catalog struct {
	phases []Phase
	index  map[string]int
	policy Policy
}

// NewCatalog validates phases and builds a catalog. An empty list yields the
// default flow.
func NewCatalog(phases []Phase, policy Policy) (*Catalog, error) {
	if len(phases) == 0 {
		phases = DefaultPhases
	}

	c := &Catalog{
		phases: make([]Phase, 0, len(phases)),
		index:  make(map[string]int, len(phases)),
		policy: policy,
	}
	for _, p := range phases {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, errors.New("phase id is required")
		}
		if _, dup := c.index[id]; dup {
			return nil, fmt.Errorf("duplicate phase id %q", id)
		}
		p.ID = id
		if p.Label == "" {
			p.Label = id
		}
		c.index[id] = len(c.phases)
		c.phases = append(c.phases, p)
	}
	for _, id := range requiredPhases {
		if _, ok := c.index[id]; !ok {
			return nil, fmt.Errorf("phase catalog is missing %q", id)
		}
	}
	return c, nil
}

// Default returns the built-in catalog with the free policy.
func Default() *Catalog {
	c, err := NewCatalog(DefaultPhases, PolicyFree)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Phases() []Phase {
	out := make([]Phase, len(c.phases))
	copy(out, c.phases)
	return out
}

func (c *Catalog) Len() int { return len(c.phases) }

func (c *Catalog) Policy() Policy { return c.policy }

func (c *Catalog) Known(status string) bool {
	_, ok := c.index[status]
	return ok
}

// IndexOf returns the position of status. Unknown and empty statuses fall back
// to 0 without error.
func (c *Catalog) IndexOf(status string) int {
	if i, ok := c.index[status]; ok {
		return i
	}
	return 0
}

func (c *Catalog) Label(status string) string {
	return c.phases[c.IndexOf(status)].Label
}

func (c *Catalog) ProgressFraction(status string) float64 {
	f := float64(c.IndexOf(status)+1) / float64(len(c.phases))
	return math.Max(MinProgress, f)
}

// Advance checks that next may follow current and returns it.
func (c *Catalog) Advance(current, next string) (string, error) {
	next = strings.TrimSpace(next)
	if !c.Known(next) {
		return current, fmt.Errorf("%w: %q", ErrUnknownStatus, next)
	}
	if c.policy == PolicyForward && c.IndexOf(next) < c.IndexOf(current) {
		return current, fmt.Errorf("%w: %s -> %s", ErrBackwards, current, next)
	}
	return next, nil
}

// BumpOnPhotoUpload moves the order to photos_submitted unless it is already
// there or further along.
func (c *Catalog) BumpOnPhotoUpload(current string) string {
	if current == "" {
		current = StatusCreated
	}
	if c.IndexOf(current) >= c.IndexOf(StatusPhotosSubmitted) {
		return current
	}
	return StatusPhotosSubmitted
}

// Paid returns the status after toggling the paid flag. prePaid is the status
// recorded when the order was marked paid, if any.
func (c *Catalog) Paid(paid bool, current, prePaid string) string {
	if paid {
		return StatusPaidComplete
	}
	if prePaid != "" {
		return prePaid
	}
	if current == "" || current == StatusPaidComplete {
		return StatusCreated
	}
	return current
}
