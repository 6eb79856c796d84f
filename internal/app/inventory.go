package app

import (
	"context"
	"strings"
	"time"

	"molten/internal/util"
	"molten/pkg/domain"
	"molten/pkg/store"
)

// InventoryService manages the user's physical stock records.
type InventoryService struct {
	entries store.InventoryStore
	items   store.GlassItemStore
	now     func() time.Time
}

func NewInventoryService(s store.Store) *InventoryService {
	return &InventoryService{
		entries: s,
		items:   s,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateEntry validates and stores a new inventory record. The item key does
// not have to resolve to a catalog item: user-entered glass is allowed.
func (s *InventoryService) CreateEntry(ctx context.Context, entry domain.InventoryEntry) (domain.InventoryEntry, error) {
	entry.ItemKey = strings.TrimSpace(entry.ItemKey)
	if err := failValidation(entry.Validate()); err != nil {
		return domain.InventoryEntry{}, err
	}
	if entry.ID == "" {
		entry.ID = util.NewID()
	}
	now := s.now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if err := s.entries.CreateEntry(ctx, entry); err != nil {
		return domain.InventoryEntry{}, err
	}
	return entry, nil
}

func (s *InventoryService) GetEntry(ctx context.Context, id string) (domain.InventoryEntry, bool, error) {
	return s.entries.GetEntry(ctx, id)
}

func (s *InventoryService) ListEntries(ctx context.Context) ([]domain.InventoryEntry, error) {
	return s.entries.ListEntries(ctx)
}

func (s *InventoryService) ListEntriesByItem(ctx context.Context, itemKey string) ([]domain.InventoryEntry, error) {
	return s.entries.ListEntriesByItem(ctx, strings.TrimSpace(itemKey))
}

// UpdateEntry replaces an existing record; absent IDs fail with
// store.ErrNotFound.
func (s *InventoryService) UpdateEntry(ctx context.Context, entry domain.InventoryEntry) error {
	entry.ItemKey = strings.TrimSpace(entry.ItemKey)
	if err := failValidation(entry.Validate()); err != nil {
		return err
	}
	entry.UpdatedAt = s.now()
	return s.entries.UpdateEntry(ctx, entry)
}

// AdjustQuantity applies a delta to an entry's quantity, clamping at zero.
func (s *InventoryService) AdjustQuantity(ctx context.Context, id string, delta float64) (domain.InventoryEntry, error) {
	entry, found, err := s.entries.GetEntry(ctx, id)
	if err != nil {
		return domain.InventoryEntry{}, err
	}
	if !found {
		return domain.InventoryEntry{}, store.ErrNotFound
	}
	entry.Quantity += delta
	if entry.Quantity < 0 {
		entry.Quantity = 0
	}
	entry.UpdatedAt = s.now()
	if err := s.entries.UpdateEntry(ctx, entry); err != nil {
		return domain.InventoryEntry{}, err
	}
	return entry, nil
}

// DeleteEntry removes a record. Deleting an absent ID is a no-op.
func (s *InventoryService) DeleteEntry(ctx context.Context, id string) error {
	return s.entries.DeleteEntry(ctx, id)
}

// ItemLevel aggregates holdings of one item across entries.
type ItemLevel struct {
	ItemKey       string             `json:"itemKey"`
	TotalQuantity float64            `json:"totalQuantity"`
	ByType        map[string]float64 `json:"byType,omitempty"`
}

// Level sums all entries for an item, broken down by stock type.
func (s *InventoryService) Level(ctx context.Context, itemKey string) (ItemLevel, error) {
	entries, err := s.entries.ListEntriesByItem(ctx, strings.TrimSpace(itemKey))
	if err != nil {
		return ItemLevel{}, err
	}
	level := ItemLevel{ItemKey: strings.TrimSpace(itemKey)}
	for _, entry := range entries {
		level.TotalQuantity += entry.Quantity
		if entry.Type != "" {
			if level.ByType == nil {
				level.ByType = make(map[string]float64)
			}
			level.ByType[string(entry.Type)] += entry.Quantity
		}
	}
	return level, nil
}
