package orders

import (
	"gemmy/internal/carrier"
	"gemmy/internal/models"
	"gemmy/internal/workflow"
)

// Tracking slot names as they appear on shipment cards.
const (
	SlotKitOutbound     = "kitOutbound"
	SlotKitReturn       = "kitReturn"
	SlotProductOutbound = "productOutbound"
)

// Detail is the tracking page payload for one token.
type Detail struct {
	Found          bool               `json:"found"`
	Tracking       *models.Projection `json:"tracking,omitempty"`
	Order          *models.Order      `json:"order,omitempty"`
	StatusLabel    string             `json:"statusLabel,omitempty"`
	StatusIndex    int                `json:"statusIndex"`
	Progress       float64            `json:"progress"`
	NeedsAttention bool               `json:"needsAttention"`
	Shipments      []carrier.Shipment `json:"shipments,omitempty"`
	ShareURL       string             `json:"shareUrl,omitempty"`
}

func (s *Service) Describe(v View) Detail {
	if !v.Found {
		return Detail{}
	}
	p := v.Projection
	return Detail{
		Found:          true,
		Tracking:       &p,
		Order:          v.Order,
		StatusLabel:    s.catalog.Label(p.Status),
		StatusIndex:    s.catalog.IndexOf(p.Status),
		Progress:       s.catalog.ProgressFraction(p.Status),
		NeedsAttention: NeedsAttention(p),
		Shipments:      Shipments(p.Tracking),
		ShareURL:       s.ShareURL(p.Token),
	}
}

// Shipments builds a card for every filled tracking slot.
func Shipments(t models.TrackingNumbers) []carrier.Shipment {
	var out []carrier.Shipment
	for _, slot := range []struct{ name, number string }{
		{SlotKitOutbound, t.KitOutbound},
		{SlotKitReturn, t.KitReturn},
		{SlotProductOutbound, t.ProductOutbound},
	} {
		if carrier.Normalize(slot.number) == "" {
			continue
		}
		out = append(out, carrier.NewShipment(slot.name, slot.number))
	}
	return out
}

// PhaseView is one catalog entry as served to clients.
type PhaseView struct {
	Index int `json:"index"`
	workflow.Phase
}

func PhaseViews(c *workflow.Catalog) []PhaseView {
	phases := c.Phases()
	out := make([]PhaseView, 0, len(phases))
	for i, ph := range phases {
		out = append(out, PhaseView{Index: i, Phase: ph})
	}
	return out
}
