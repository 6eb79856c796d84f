package app

import (
	"context"
	"strings"
	"time"

	"molten/pkg/domain"
	"molten/pkg/store"
)

// ShoppingService manages per-store shopping lists. Entries are identified
// by the item/store pair; setting the same pair twice replaces the entry.
type ShoppingService struct {
	lists store.ShoppingListStore
	now   func() time.Time
}

func NewShoppingService(s store.Store) *ShoppingService {
	return &ShoppingService{
		lists: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetEntry upserts the entry keyed by item and store name.
func (s *ShoppingService) SetEntry(ctx context.Context, entry domain.ShoppingListEntry) (domain.ShoppingListEntry, error) {
	entry.ItemKey = strings.TrimSpace(entry.ItemKey)
	entry.Store = strings.TrimSpace(entry.Store)
	if err := failValidation(entry.Validate()); err != nil {
		return domain.ShoppingListEntry{}, err
	}
	now := s.now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if err := s.lists.SetShoppingEntry(ctx, entry); err != nil {
		return domain.ShoppingListEntry{}, err
	}
	return entry, nil
}

func (s *ShoppingService) GetEntry(ctx context.Context, itemKey, storeName string) (domain.ShoppingListEntry, bool, error) {
	return s.lists.GetShoppingEntry(ctx, strings.TrimSpace(itemKey), strings.TrimSpace(storeName))
}

func (s *ShoppingService) ListEntries(ctx context.Context) ([]domain.ShoppingListEntry, error) {
	return s.lists.ListShoppingEntries(ctx)
}

func (s *ShoppingService) ListByStore(ctx context.Context, storeName string) ([]domain.ShoppingListEntry, error) {
	return s.lists.ListShoppingEntriesByStore(ctx, strings.TrimSpace(storeName))
}

// Stores returns the distinct store names with at least one entry, in first
// appearance order.
func (s *ShoppingService) Stores(ctx context.Context) ([]string, error) {
	entries, err := s.lists.ListShoppingEntries(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(entries))
	var names []string
	for _, entry := range entries {
		if !seen[entry.Store] {
			seen[entry.Store] = true
			names = append(names, entry.Store)
		}
	}
	return names, nil
}

// DeleteEntry removes an entry; absent pairs are a no-op.
func (s *ShoppingService) DeleteEntry(ctx context.Context, itemKey, storeName string) error {
	return s.lists.DeleteShoppingEntry(ctx, strings.TrimSpace(itemKey), strings.TrimSpace(storeName))
}
