package orders

import (
	"context"

	"gemmy/internal/carrier"
	"gemmy/internal/models"
	"gemmy/internal/store"
	"gemmy/internal/workflow"
)

// SaveAddress stores the mailing address and moves the order to
// address_captured. Customers and vendors may both call it.
func (s *Service) SaveAddress(ctx context.Context, actor Actor, token string, addr models.Address) error {
	status := workflow.StatusAddressCaptured
	return s.Mutate(ctx, actor, token, store.Mutation{Address: &addr, Status: &status})
}

// UpdateStatus moves the order to next under the catalog's transition policy.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, token, next string) (string, error) {
	p, err := s.load(ctx, token)
	if err != nil {
		return "", err
	}
	if err := requireAdmin(actor, p); err != nil {
		return "", err
	}

	status, err := s.catalog.Advance(p.Status, next)
	if err != nil {
		return "", err
	}
	if err := s.apply(ctx, actor, p, store.Mutation{Status: &status}); err != nil {
		return "", err
	}
	return status, nil
}

// SaveTracking replaces the three tracking slots with normalized numbers.
func (s *Service) SaveTracking(ctx context.Context, actor Actor, token string, raw models.TrackingNumbers) (models.TrackingNumbers, error) {
	p, err := s.load(ctx, token)
	if err != nil {
		return models.TrackingNumbers{}, err
	}
	if err := requireAdmin(actor, p); err != nil {
		return models.TrackingNumbers{}, err
	}

	tracking := models.TrackingNumbers{
		KitOutbound:     carrier.Normalize(raw.KitOutbound),
		KitReturn:       carrier.Normalize(raw.KitReturn),
		ProductOutbound: carrier.Normalize(raw.ProductOutbound),
	}
	if err := s.apply(ctx, actor, p, store.Mutation{Tracking: &tracking}); err != nil {
		return models.TrackingNumbers{}, err
	}
	return tracking, nil
}

// SetPaid toggles the paid flag. Marking paid jumps to paid_complete and
// remembers the previous phase; un-marking goes back to it.
func (s *Service) SetPaid(ctx context.Context, actor Actor, token string, paid bool) (string, error) {
	p, err := s.load(ctx, token)
	if err != nil {
		return "", err
	}
	if err := requireAdmin(actor, p); err != nil {
		return "", err
	}

	status := s.catalog.Paid(paid, p.Status, p.PrePaidStatus)
	m := store.Mutation{Paid: &paid, Status: &status}
	switch {
	case paid && !p.Paid && p.Status != workflow.StatusPaidComplete:
		prev := p.Status
		m.PrePaidStatus = &prev
	case !paid:
		cleared := ""
		m.PrePaidStatus = &cleared
	}

	if err := s.apply(ctx, actor, p, m); err != nil {
		return "", err
	}
	return status, nil
}

func (s *Service) SetArchived(ctx context.Context, actor Actor, token string, archived bool) error {
	p, err := s.load(ctx, token)
	if err != nil {
		return err
	}
	if err := requireAdmin(actor, p); err != nil {
		return err
	}
	return s.apply(ctx, actor, p, store.Mutation{Archived: &archived})
}

// MarkSeen records that the vendor looked at the order. Nothing else on the
// projection changes.
func (s *Service) MarkSeen(ctx context.Context, actor Actor, token string) error {
	if !actor.Admin {
		return ErrAdminOnly
	}
	return s.Mutate(ctx, actor, token, store.Mutation{SeenOnly: true})
}
