package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"molten/pkg/cache"
	"molten/pkg/catalog"
	"molten/pkg/domain"
	"molten/pkg/store"
)

const upsertBatchSize = 200

// CatalogService composes the item, inventory and note repositories into the
// catalog-facing workflows: search, deep-link resolution, import/merge and
// per-item notes.
type CatalogService struct {
	items     store.GlassItemStore
	inventory store.InventoryStore
	notes     store.NoteStore
	deepLinks *cache.DeepLinkCache // optional
	now       func() time.Time
}

// NewCatalogService wires the service. deepLinks may be nil; resolution then
// always hits the store.
func NewCatalogService(s store.Store, deepLinks *cache.DeepLinkCache) *CatalogService {
	return &CatalogService{
		items:     s,
		inventory: s,
		notes:     s,
		deepLinks: deepLinks,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Search applies the filter chain to a snapshot of the catalog.
func (c *CatalogService) Search(ctx context.Context, constraints catalog.Constraints) ([]domain.GlassItem, error) {
	items, err := c.items.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Apply(items, constraints), nil
}

// ItemSummary pairs a catalog item with the user's current holdings of it.
type ItemSummary struct {
	Item          domain.GlassItem `json:"item"`
	TotalQuantity float64          `json:"totalQuantity"`
	HasNote       bool             `json:"hasNote"`
}

// SearchWithInventory searches the catalog and attaches current inventory
// totals and note presence to each hit.
func (c *CatalogService) SearchWithInventory(ctx context.Context, constraints catalog.Constraints) ([]ItemSummary, error) {
	items, err := c.Search(ctx, constraints)
	if err != nil {
		return nil, err
	}
	entries, err := c.inventory.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64, len(entries))
	for _, entry := range entries {
		totals[entry.ItemKey] += entry.Quantity
	}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.NaturalKey)
	}
	notes, err := c.notes.GetNotesForItems(ctx, keys)
	if err != nil {
		return nil, err
	}
	summaries := make([]ItemSummary, 0, len(items))
	for _, item := range items {
		_, hasNote := notes[item.NaturalKey]
		summaries = append(summaries, ItemSummary{
			Item:          item,
			TotalQuantity: totals[item.NaturalKey],
			HasNote:       hasNote,
		})
	}
	return summaries, nil
}

// GetItem fetches one catalog entry by natural key.
func (c *CatalogService) GetItem(ctx context.Context, key string) (domain.GlassItem, bool, error) {
	return c.items.GetItem(ctx, key)
}

// CreateItem validates and stores a manually entered item.
func (c *CatalogService) CreateItem(ctx context.Context, item domain.GlassItem) (domain.GlassItem, error) {
	item.NaturalKey = strings.TrimSpace(item.NaturalKey)
	if item.NaturalKey == "" {
		item.NaturalKey = domain.NaturalKey(item.Manufacturer, item.SKU, 0)
	}
	if item.Status == "" {
		item.Status = domain.StatusAvailable
	}
	if err := failValidation(item.Validate()); err != nil {
		return domain.GlassItem{}, err
	}
	now := c.now()
	if item.AddedDate.IsZero() {
		item.AddedDate = now
	}
	item.LastSeen = now
	if err := c.items.CreateItem(ctx, item); err != nil {
		return domain.GlassItem{}, err
	}
	return item, nil
}

// UpdateItem validates and replaces an existing item, invalidating any
// cached deep link for it.
func (c *CatalogService) UpdateItem(ctx context.Context, item domain.GlassItem) error {
	if err := failValidation(item.Validate()); err != nil {
		return err
	}
	if err := c.items.UpdateItem(ctx, item); err != nil {
		return err
	}
	if c.deepLinks != nil && item.StableID != "" {
		if err := c.deepLinks.Invalidate(ctx, item.StableID); err != nil {
			logFromCtx(ctx).Warn("deeplink invalidate failed", "stable_id", item.StableID, "error", err)
		}
	}
	return nil
}

// ResolveDeepLink resolves a QR stable ID to its item via direct lookup,
// consulting the cache first.
func (c *CatalogService) ResolveDeepLink(ctx context.Context, stableID string) (domain.GlassItem, bool, error) {
	stableID = strings.TrimSpace(stableID)
	if stableID == "" {
		return domain.GlassItem{}, false, nil
	}
	if c.deepLinks != nil {
		key, hit, err := c.deepLinks.Get(ctx, stableID)
		if err != nil {
			logFromCtx(ctx).Warn("deeplink cache read failed", "error", err)
		} else if hit {
			item, found, err := c.items.GetItem(ctx, key)
			if err != nil || found {
				return item, found, err
			}
		}
	}
	item, found, err := c.items.GetItemByStableID(ctx, stableID)
	if err != nil || !found {
		return domain.GlassItem{}, false, err
	}
	if c.deepLinks != nil {
		if err := c.deepLinks.Put(ctx, stableID, item.NaturalKey); err != nil {
			logFromCtx(ctx).Warn("deeplink cache write failed", "error", err)
		}
	}
	return item, true, nil
}

// ImportOptions scopes one catalog import run.
type ImportOptions struct {
	// Manufacturers restricts the discontinued sweep to sources that were
	// actually scraped in this run. Nil means every manufacturer present in
	// the batch.
	Manufacturers []string
	// MaxItems caps how many decoded items are merged. Zero means no cap.
	MaxItems int
	DryRun   bool
}

// ImportStats summarizes a merge.
type ImportStats struct {
	New          int `json:"new"`
	Updated      int `json:"updated"`
	Reactivated  int `json:"reactivated"`
	Discontinued int `json:"discontinued"`
	Unchanged    int `json:"unchanged"`
}

// ImportItems merges a decoded batch into the catalog by natural key. Items
// are never deleted: entries of a scraped manufacturer missing from the
// batch flip to discontinued, and discontinued entries seen again reactivate.
// Batch records carrying their own lifecycle state (the glass database
// format) keep it, so restoring a backup preserves discontinued products.
func (c *CatalogService) ImportItems(ctx context.Context, batch []domain.GlassItem, opts ImportOptions) (ImportStats, error) {
	var stats ImportStats

	existing, err := c.items.ListItems(ctx)
	if err != nil {
		return stats, err
	}
	current := make(map[string]domain.GlassItem, len(existing))
	stableIDs := make(map[string]bool, len(existing))
	for _, item := range existing {
		current[item.NaturalKey] = item
		if item.StableID != "" {
			stableIDs[item.StableID] = true
		}
	}

	scraped := make(map[string]bool)
	if opts.Manufacturers != nil {
		for _, mfr := range opts.Manufacturers {
			scraped[strings.ToLower(strings.TrimSpace(mfr))] = true
		}
	} else {
		for _, item := range batch {
			scraped[strings.ToLower(item.Manufacturer)] = true
		}
	}

	today := c.now()
	seen := make(map[string]bool, len(batch))
	var upserts []domain.GlassItem

	for _, item := range batch {
		seen[item.NaturalKey] = true
		prior, exists := current[item.NaturalKey]
		if !exists {
			if item.StableID == "" || stableIDs[item.StableID] {
				id, err := catalog.UniqueStableID(item.Manufacturer, item.SKU, stableIDs)
				if err != nil {
					return stats, fmt.Errorf("assign stable id: %w", err)
				}
				item.StableID = id
			}
			stableIDs[item.StableID] = true
			// Database backups carry lifecycle state per record; keep it and
			// default only what the source format left blank.
			if item.Status == "" {
				item.Status = domain.StatusAvailable
			}
			if item.Status != domain.StatusDiscontinued {
				item.DiscontinuedDate = nil
			}
			if item.AddedDate.IsZero() {
				item.AddedDate = today
			}
			if item.LastSeen.IsZero() {
				item.LastSeen = today
			}
			upserts = append(upserts, item)
			stats.New++
			continue
		}

		item.StableID = prior.StableID
		item.AddedDate = prior.AddedDate
		item.LastSeen = today
		if item.Status == "" {
			item.Status = prior.Status
			item.DiscontinuedDate = prior.DiscontinuedDate
		}
		reactivated := prior.Status == domain.StatusDiscontinued && item.Status == domain.StatusAvailable
		if reactivated {
			item.DiscontinuedDate = nil
		}
		switch {
		case reactivated:
			stats.Reactivated++
			upserts = append(upserts, item)
		case prior.Status != domain.StatusDiscontinued && item.Status == domain.StatusDiscontinued:
			if item.DiscontinuedDate == nil {
				discontinued := today
				item.DiscontinuedDate = &discontinued
			}
			stats.Discontinued++
			upserts = append(upserts, item)
		case itemChanged(prior, item):
			stats.Updated++
			upserts = append(upserts, item)
		default:
			stats.Unchanged++
			prior.LastSeen = today
			upserts = append(upserts, prior)
		}
	}

	// Sweep for discontinued products: in the catalog, from a scraped
	// manufacturer, absent from this batch.
	for key, item := range current {
		if seen[key] || item.Status != domain.StatusAvailable {
			continue
		}
		if !scraped[strings.ToLower(item.Manufacturer)] {
			continue
		}
		item.Status = domain.StatusDiscontinued
		discontinued := today
		item.DiscontinuedDate = &discontinued
		upserts = append(upserts, item)
		stats.Discontinued++
	}

	if opts.DryRun {
		return stats, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for start := 0; start < len(upserts); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(upserts) {
			end = len(upserts)
		}
		chunk := upserts[start:end]
		group.Go(func() error {
			return c.items.UpsertItems(groupCtx, chunk)
		})
	}
	if err := group.Wait(); err != nil {
		return stats, fmt.Errorf("upsert batch: %w", err)
	}
	return stats, nil
}

// itemChanged reports whether any scraped field differs. Lifecycle fields
// are excluded; they are managed by the merge itself.
func itemChanged(prior, next domain.GlassItem) bool {
	return prior.Name != next.Name ||
		prior.Manufacturer != next.Manufacturer ||
		prior.SKU != next.SKU ||
		prior.COE != next.COE ||
		prior.Description != next.Description ||
		!equalStrings(prior.Tags, next.Tags) ||
		!equalStrings(prior.Synonyms, next.Synonyms) ||
		!equalStrings(prior.StockTypes, next.StockTypes) ||
		prior.ManufacturerURL != next.ManufacturerURL ||
		prior.ImageURL != next.ImageURL ||
		prior.ImagePath != next.ImagePath
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---- notes ----

// CreateNote stores a new note; a second note for the same item fails with
// store.ErrDuplicateKey.
func (c *CatalogService) CreateNote(ctx context.Context, note domain.UserNote) (domain.UserNote, error) {
	note.ItemKey = strings.TrimSpace(note.ItemKey)
	note.Text = strings.TrimSpace(note.Text)
	if err := failValidation(note.Validate()); err != nil {
		return domain.UserNote{}, err
	}
	now := c.now()
	note.CreatedAt = now
	note.UpdatedAt = now
	if err := c.notes.CreateNote(ctx, note); err != nil {
		return domain.UserNote{}, err
	}
	return note, nil
}

// SetNote upserts the note for an item.
func (c *CatalogService) SetNote(ctx context.Context, note domain.UserNote) (domain.UserNote, error) {
	note.ItemKey = strings.TrimSpace(note.ItemKey)
	note.Text = strings.TrimSpace(note.Text)
	if err := failValidation(note.Validate()); err != nil {
		return domain.UserNote{}, err
	}
	now := c.now()
	note.CreatedAt = now
	note.UpdatedAt = now
	if err := c.notes.SetNote(ctx, note); err != nil {
		return domain.UserNote{}, err
	}
	return note, nil
}

// UpdateNote replaces an existing note; absent keys fail with
// store.ErrNotFound.
func (c *CatalogService) UpdateNote(ctx context.Context, note domain.UserNote) error {
	note.ItemKey = strings.TrimSpace(note.ItemKey)
	note.Text = strings.TrimSpace(note.Text)
	if err := failValidation(note.Validate()); err != nil {
		return err
	}
	note.UpdatedAt = c.now()
	return c.notes.UpdateNote(ctx, note)
}

func (c *CatalogService) GetNote(ctx context.Context, itemKey string) (domain.UserNote, bool, error) {
	return c.notes.GetNote(ctx, itemKey)
}

func (c *CatalogService) NotesForItems(ctx context.Context, itemKeys []string) (map[string]domain.UserNote, error) {
	return c.notes.GetNotesForItems(ctx, itemKeys)
}

func (c *CatalogService) ListNotes(ctx context.Context) ([]domain.UserNote, error) {
	return c.notes.ListNotes(ctx)
}

func (c *CatalogService) SearchNotes(ctx context.Context, text string) ([]domain.UserNote, error) {
	return c.notes.SearchNotes(ctx, text)
}

func (c *CatalogService) DeleteNote(ctx context.Context, itemKey string) error {
	return c.notes.DeleteNote(ctx, itemKey)
}

func (c *CatalogService) DeleteAllNotes(ctx context.Context) error {
	return c.notes.DeleteAllNotes(ctx)
}
