package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"molten/pkg/domain"
	"molten/pkg/store"
)

// PurchaseService records purchases and can fold them back into inventory
// and shopping lists.
type PurchaseService struct {
	purchases store.PurchaseStore
	lists     store.ShoppingListStore
	inventory store.InventoryStore
	now       func() time.Time
}

func NewPurchaseService(s store.Store) *PurchaseService {
	return &PurchaseService{
		purchases: s,
		lists:     s,
		inventory: s,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreatePurchase validates and stores a purchase with its line items. Total
// is recomputed from the lines plus shipping and tax when left at zero.
func (s *PurchaseService) CreatePurchase(ctx context.Context, record domain.PurchaseRecord) (domain.PurchaseRecord, error) {
	record.Supplier = strings.TrimSpace(record.Supplier)
	now := s.now()
	if record.PurchaseDate.IsZero() {
		record.PurchaseDate = now
	}
	if err := failValidation(record.Validate()); err != nil {
		return domain.PurchaseRecord{}, err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Total == 0 {
		record.Total = record.Shipping + record.Tax
		for _, line := range record.Items {
			record.Total += line.Price * line.Quantity
		}
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	if err := s.purchases.CreatePurchase(ctx, record); err != nil {
		return domain.PurchaseRecord{}, err
	}
	return record, nil
}

func (s *PurchaseService) GetPurchase(ctx context.Context, id string) (domain.PurchaseRecord, bool, error) {
	return s.purchases.GetPurchase(ctx, id)
}

func (s *PurchaseService) ListPurchases(ctx context.Context) ([]domain.PurchaseRecord, error) {
	return s.purchases.ListPurchases(ctx)
}

// DeletePurchase removes a purchase and its lines; absent IDs are a no-op.
func (s *PurchaseService) DeletePurchase(ctx context.Context, id string) error {
	return s.purchases.DeletePurchase(ctx, id)
}

// ReceiveOptions control the side effects of ReceivePurchase.
type ReceiveOptions struct {
	// AddToInventory creates one inventory entry per purchase line.
	AddToInventory bool
	// ClearShoppingStore removes shopping entries for the purchased items
	// from this store's list. Empty means no list is touched.
	ClearShoppingStore string
}

// ReceivePurchase records a purchase and applies its side effects: stocking
// inventory and clearing satisfied shopping-list entries.
func (s *PurchaseService) ReceivePurchase(ctx context.Context, record domain.PurchaseRecord, opts ReceiveOptions) (domain.PurchaseRecord, error) {
	created, err := s.CreatePurchase(ctx, record)
	if err != nil {
		return domain.PurchaseRecord{}, err
	}
	now := s.now()
	for _, line := range created.Items {
		if opts.AddToInventory {
			entry := domain.InventoryEntry{
				ID:        uuid.NewString(),
				ItemKey:   line.ItemKey,
				Type:      line.Type,
				Quantity:  line.Quantity,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.inventory.CreateEntry(ctx, entry); err != nil {
				return domain.PurchaseRecord{}, err
			}
		}
		if opts.ClearShoppingStore != "" {
			if err := s.lists.DeleteShoppingEntry(ctx, line.ItemKey, opts.ClearShoppingStore); err != nil {
				return domain.PurchaseRecord{}, err
			}
		}
	}
	return created, nil
}
