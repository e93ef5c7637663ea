package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gemmy/internal/models"
	"gemmy/internal/workflow"
)

const (
	indexReadLimit = 500

	FilterAll            = "all"
	FilterNeedsAttention = "needs_attention"

	SortUpdatedDesc = "updated_desc"
	SortCreatedDesc = "created_desc"
	SortNameAsc     = "name_asc"

	defaultPageLimit = 20
	maxPageLimit     = 100
)

// NeedsAttention reports whether the customer did something the vendor has
// not looked at yet.
func NeedsAttention(p models.Projection) bool {
	lastBy := p.LastUpdateBy
	if lastBy == "" {
		lastBy = models.ActorVendor
	}
	if lastBy != models.ActorCustomer {
		return false
	}

	activity := p.UpdatedAt
	if p.LastCustomerActivityAt != nil && !p.LastCustomerActivityAt.IsZero() {
		activity = *p.LastCustomerActivityAt
	}
	var seen time.Time
	if p.VendorLastSeenAt != nil {
		seen = *p.VendorLastSeenAt
	}
	return activity.After(seen)
}

type ListQuery struct {
	Search string
	Status string
	Sort   string
	Page   int64
	Limit  int64
}

// Summary is one row of the vendor order index.
type Summary struct {
	models.Projection
	StatusLabel    string  `json:"statusLabel"`
	Progress       float64 `json:"progress"`
	NeedsAttention bool    `json:"needsAttention"`
	ShareURL       string  `json:"shareUrl"`
}

// List reads the most recently updated projections and filters, sorts and
// pages them.
func (s *Service) List(ctx context.Context, actor Actor, q ListQuery) (Page[Summary], error) {
	if !actor.Admin {
		return Page[Summary]{}, ErrAdminOnly
	}
	items, err := s.store.ListProjections(ctx, indexReadLimit)
	if err != nil {
		return Page[Summary]{}, fmt.Errorf("list projections: %w", err)
	}

	items = FilterProjections(items, q.Search, q.Status)
	SortProjections(items, q.Sort)

	rows := make([]Summary, 0, len(items))
	for _, p := range items {
		rows = append(rows, Summary{
			Projection:     p,
			StatusLabel:    s.catalog.Label(p.Status),
			Progress:       s.catalog.ProgressFraction(p.Status),
			NeedsAttention: NeedsAttention(p),
			ShareURL:       s.ShareURL(p.Token),
		})
	}
	return Paginate(rows, q.Page, q.Limit), nil
}

// FilterProjections applies the free-text search and the status filter.
func FilterProjections(items []models.Projection, search, status string) []models.Projection {
	needle := strings.ToLower(strings.TrimSpace(search))
	status = strings.TrimSpace(status)

	out := make([]models.Projection, 0, len(items))
	for _, p := range items {
		if needle != "" && !matches(p, needle) {
			continue
		}
		switch status {
		case "", FilterAll:
		case FilterNeedsAttention:
			if !NeedsAttention(p) {
				continue
			}
		default:
			current := p.Status
			if current == "" {
				current = workflow.StatusCreated
			}
			if current != status {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func matches(p models.Projection, needle string) bool {
	for _, field := range []string{p.CustomerName, p.CustomerEmail, p.Status, p.OrderID, p.Token} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// SortProjections orders items in place. Unknown modes sort by last update.
func SortProjections(items []models.Projection, mode string) {
	switch mode {
	case SortCreatedDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
	case SortNameAsc:
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].CustomerName) < strings.ToLower(items[j].CustomerName)
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		})
	}
}

type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// Paginate slices items for a 1-based page. Out of range pages are empty.
func Paginate[T any](items []T, page, limit int64) Page[T] {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	total := int64(len(items))
	out := Page[T]{
		Items:      []T{},
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
	start := (page - 1) * limit
	if start >= total {
		return out
	}
	end := min(start+limit, total)
	out.Items = items[start:end]
	return out
}
