package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"molten/pkg/domain"
)

type shoppingKey struct {
	itemKey string
	store   string
}

type memoryProject struct {
	project domain.Project
	legacy  LegacyProjectBlobs
}

// MemoryStore keeps every repository in process memory. It backs tests and
// offline development; behavior mirrors GormStore, including error contracts
// and idempotent deletes.
type MemoryStore struct {
	mu        sync.RWMutex
	items     map[string]domain.GlassItem
	stableIDs map[string]string // stable ID -> natural key
	inventory map[string]domain.InventoryEntry
	invOrder  []string
	shopping  map[shoppingKey]domain.ShoppingListEntry
	shopOrder []shoppingKey
	purchases map[string]domain.PurchaseRecord
	purOrder  []string
	projects  map[string]*memoryProject
	projOrder []string
	notes     map[string]domain.UserNote
	noteOrder []string
	flags     map[string]time.Time
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:     make(map[string]domain.GlassItem),
		stableIDs: make(map[string]string),
		inventory: make(map[string]domain.InventoryEntry),
		shopping:  make(map[shoppingKey]domain.ShoppingListEntry),
		purchases: make(map[string]domain.PurchaseRecord),
		projects:  make(map[string]*memoryProject),
		notes:     make(map[string]domain.UserNote),
		flags:     make(map[string]time.Time),
	}
}

// ---- glass items ----

func (m *MemoryStore) CreateItem(_ context.Context, item domain.GlassItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[item.NaturalKey]; exists {
		return ErrDuplicateKey
	}
	if item.StableID != "" {
		if _, taken := m.stableIDs[item.StableID]; taken {
			return ErrDuplicateKey
		}
		m.stableIDs[item.StableID] = item.NaturalKey
	}
	m.items[item.NaturalKey] = cloneItem(item)
	return nil
}

func (m *MemoryStore) GetItem(_ context.Context, key string) (domain.GlassItem, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[key]
	if !ok {
		return domain.GlassItem{}, false, nil
	}
	return cloneItem(item), true, nil
}

func (m *MemoryStore) GetItemByStableID(_ context.Context, stableID string) (domain.GlassItem, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.stableIDs[stableID]
	if !ok {
		return domain.GlassItem{}, false, nil
	}
	item, exists := m.items[key]
	if !exists {
		return domain.GlassItem{}, false, nil
	}
	return cloneItem(item), true, nil
}

// ListItems returns the catalog ordered by manufacturer then name, matching
// the persistent backend.
func (m *MemoryStore) ListItems(_ context.Context) ([]domain.GlassItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.GlassItem, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, cloneItem(item))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Manufacturer != items[j].Manufacturer {
			return items[i].Manufacturer < items[j].Manufacturer
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (m *MemoryStore) UpdateItem(_ context.Context, item domain.GlassItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[item.NaturalKey]
	if !ok {
		return ErrNotFound
	}
	if existing.StableID != item.StableID {
		delete(m.stableIDs, existing.StableID)
		if item.StableID != "" {
			m.stableIDs[item.StableID] = item.NaturalKey
		}
	}
	m.items[item.NaturalKey] = cloneItem(item)
	return nil
}

func (m *MemoryStore) UpsertItems(_ context.Context, items []domain.GlassItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if existing, ok := m.items[item.NaturalKey]; ok {
			// Merge semantics match the SQL upsert: identity and added date
			// survive, everything else is replaced.
			item.AddedDate = existing.AddedDate
			if existing.StableID != "" && item.StableID == "" {
				item.StableID = existing.StableID
			}
			if existing.StableID != item.StableID {
				delete(m.stableIDs, existing.StableID)
			}
		}
		if item.StableID != "" {
			m.stableIDs[item.StableID] = item.NaturalKey
		}
		m.items[item.NaturalKey] = cloneItem(item)
	}
	return nil
}

// ---- inventory ----

func (m *MemoryStore) CreateEntry(_ context.Context, entry domain.InventoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.inventory[entry.ID]; exists {
		return ErrDuplicateKey
	}
	m.inventory[entry.ID] = entry
	m.invOrder = append(m.invOrder, entry.ID)
	return nil
}

func (m *MemoryStore) GetEntry(_ context.Context, id string) (domain.InventoryEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.inventory[id]
	return entry, ok, nil
}

func (m *MemoryStore) ListEntries(_ context.Context) ([]domain.InventoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]domain.InventoryEntry, 0, len(m.invOrder))
	for _, id := range m.invOrder {
		if entry, ok := m.inventory[id]; ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *MemoryStore) ListEntriesByItem(_ context.Context, itemKey string) ([]domain.InventoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []domain.InventoryEntry
	for _, id := range m.invOrder {
		if entry, ok := m.inventory[id]; ok && entry.ItemKey == itemKey {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *MemoryStore) UpdateEntry(_ context.Context, entry domain.InventoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.inventory[entry.ID]
	if !ok {
		return ErrNotFound
	}
	entry.CreatedAt = existing.CreatedAt
	m.inventory[entry.ID] = entry
	return nil
}

func (m *MemoryStore) DeleteEntry(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inventory[id]; !ok {
		return nil
	}
	delete(m.inventory, id)
	m.invOrder = removeString(m.invOrder, id)
	return nil
}

// ---- shopping list ----

func (m *MemoryStore) SetShoppingEntry(_ context.Context, entry domain.ShoppingListEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := shoppingKey{itemKey: entry.ItemKey, store: entry.Store}
	if existing, ok := m.shopping[key]; ok {
		entry.CreatedAt = existing.CreatedAt
	} else {
		m.shopOrder = append(m.shopOrder, key)
	}
	m.shopping[key] = entry
	return nil
}

func (m *MemoryStore) GetShoppingEntry(_ context.Context, itemKey, storeName string) (domain.ShoppingListEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.shopping[shoppingKey{itemKey: itemKey, store: storeName}]
	return entry, ok, nil
}

func (m *MemoryStore) ListShoppingEntries(_ context.Context) ([]domain.ShoppingListEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]domain.ShoppingListEntry, 0, len(m.shopOrder))
	for _, key := range m.shopOrder {
		if entry, ok := m.shopping[key]; ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *MemoryStore) ListShoppingEntriesByStore(_ context.Context, storeName string) ([]domain.ShoppingListEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []domain.ShoppingListEntry
	for _, key := range m.shopOrder {
		if entry, ok := m.shopping[key]; ok && entry.Store == storeName {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *MemoryStore) DeleteShoppingEntry(_ context.Context, itemKey, storeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := shoppingKey{itemKey: itemKey, store: storeName}
	if _, ok := m.shopping[key]; !ok {
		return nil
	}
	delete(m.shopping, key)
	filtered := m.shopOrder[:0]
	for _, k := range m.shopOrder {
		if k != key {
			filtered = append(filtered, k)
		}
	}
	m.shopOrder = filtered
	return nil
}

// ---- purchases ----

func (m *MemoryStore) CreatePurchase(_ context.Context, record domain.PurchaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.purchases[record.ID]; exists {
		return ErrDuplicateKey
	}
	m.purchases[record.ID] = clonePurchase(record)
	m.purOrder = append(m.purOrder, record.ID)
	return nil
}

func (m *MemoryStore) GetPurchase(_ context.Context, id string) (domain.PurchaseRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.purchases[id]
	if !ok {
		return domain.PurchaseRecord{}, false, nil
	}
	return clonePurchase(record), true, nil
}

func (m *MemoryStore) ListPurchases(_ context.Context) ([]domain.PurchaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]domain.PurchaseRecord, 0, len(m.purOrder))
	for _, id := range m.purOrder {
		if record, ok := m.purchases[id]; ok {
			records = append(records, clonePurchase(record))
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PurchaseDate.After(records[j].PurchaseDate)
	})
	return records, nil
}

func (m *MemoryStore) UpdatePurchase(_ context.Context, record domain.PurchaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.purchases[record.ID]
	if !ok {
		return ErrNotFound
	}
	record.CreatedAt = existing.CreatedAt
	m.purchases[record.ID] = clonePurchase(record)
	return nil
}

// DeletePurchase removes the record; owned lines go with it.
func (m *MemoryStore) DeletePurchase(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.purchases[id]; !ok {
		return nil
	}
	delete(m.purchases, id)
	m.purOrder = removeString(m.purOrder, id)
	return nil
}

// ---- projects ----

func (m *MemoryStore) CreateProject(_ context.Context, project domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.projects[project.ID]; exists {
		return ErrDuplicateKey
	}
	m.projects[project.ID] = &memoryProject{
		project: cloneProject(project),
		legacy:  LegacyProjectBlobs{ProjectID: project.ID},
	}
	m.projOrder = append(m.projOrder, project.ID)
	return nil
}

// SeedLegacyProject installs a project that still carries serialized legacy
// blobs, for exercising the migration path against this backend.
func (m *MemoryStore) SeedLegacyProject(project domain.Project, legacy LegacyProjectBlobs) {
	m.mu.Lock()
	defer m.mu.Unlock()
	legacy.ProjectID = project.ID
	if _, exists := m.projects[project.ID]; !exists {
		m.projOrder = append(m.projOrder, project.ID)
	}
	m.projects[project.ID] = &memoryProject{project: cloneProject(project), legacy: legacy}
}

func (m *MemoryStore) GetProject(_ context.Context, id string) (domain.Project, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.projects[id]
	if !ok {
		return domain.Project{}, false, nil
	}
	return cloneProject(entry.project), true, nil
}

func (m *MemoryStore) ListProjects(_ context.Context) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	projects := make([]domain.Project, 0, len(m.projOrder))
	for _, id := range m.projOrder {
		if entry, ok := m.projects[id]; ok {
			projects = append(projects, cloneProject(entry.project))
		}
	}
	return projects, nil
}

func (m *MemoryStore) UpdateProject(_ context.Context, project domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.projects[project.ID]
	if !ok {
		return ErrNotFound
	}
	updated := cloneProject(project)
	updated.CreatedAt = entry.project.CreatedAt
	updated.Images = entry.project.Images
	entry.project = updated
	return nil
}

func (m *MemoryStore) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return nil
	}
	delete(m.projects, id)
	m.projOrder = removeString(m.projOrder, id)
	return nil
}

func (m *MemoryStore) AddImageRef(_ context.Context, projectID string, ref domain.ImageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	entry.project.Images = append(entry.project.Images, ref)
	return nil
}

func (m *MemoryStore) DeleteImageRef(_ context.Context, projectID, refID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.projects[projectID]
	if !ok {
		return nil
	}
	images := entry.project.Images[:0]
	for _, ref := range entry.project.Images {
		if ref.ID != refID {
			images = append(images, ref)
		}
	}
	entry.project.Images = images
	return nil
}

func (m *MemoryStore) ListLegacyProjectBlobs(_ context.Context) ([]LegacyProjectBlobs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blobs := make([]LegacyProjectBlobs, 0, len(m.projOrder))
	for _, id := range m.projOrder {
		if entry, ok := m.projects[id]; ok {
			blobs = append(blobs, entry.legacy)
		}
	}
	return blobs, nil
}

func (m *MemoryStore) AddProjectChildren(_ context.Context, projectID string, kind ChildKind, children []domain.ProjectChild) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	switch kind {
	case ChildTag:
		entry.project.Tags = append(entry.project.Tags, children...)
	case ChildTechnique:
		entry.project.Techniques = append(entry.project.Techniques, children...)
	case ChildReference:
		entry.project.References = append(entry.project.References, children...)
	case ChildStep:
		for _, child := range children {
			entry.project.Steps = append(entry.project.Steps, domain.ProjectStep{
				ID:         child.ID,
				Text:       child.Value,
				OrderIndex: child.OrderIndex,
				CreatedAt:  child.CreatedAt,
			})
		}
	}
	return nil
}

func (m *MemoryStore) AddGlassUsage(_ context.Context, projectID string, usage []domain.GlassUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	entry.project.GlassUsage = append(entry.project.GlassUsage, usage...)
	return nil
}

func (m *MemoryStore) ClearLegacyBlob(_ context.Context, projectID string, kind ChildKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.projects[projectID]
	if !ok {
		return nil
	}
	switch kind {
	case ChildTag:
		entry.legacy.Tags = ""
	case ChildTechnique:
		entry.legacy.Techniques = ""
	case ChildReference:
		entry.legacy.ReferenceURLs = ""
	}
	return nil
}

func (m *MemoryStore) ClearLegacyGlassUsage(_ context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.projects[projectID]; ok {
		entry.legacy.GlassUsage = ""
	}
	return nil
}

// ---- notes ----

func (m *MemoryStore) CreateNote(_ context.Context, note domain.UserNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.notes[note.ItemKey]; exists {
		return ErrDuplicateKey
	}
	m.notes[note.ItemKey] = note
	m.noteOrder = append(m.noteOrder, note.ItemKey)
	return nil
}

func (m *MemoryStore) GetNote(_ context.Context, itemKey string) (domain.UserNote, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	note, ok := m.notes[itemKey]
	return note, ok, nil
}

func (m *MemoryStore) GetNotesForItems(_ context.Context, itemKeys []string) (map[string]domain.UserNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]domain.UserNote, len(itemKeys))
	for _, key := range itemKeys {
		if note, ok := m.notes[key]; ok {
			result[key] = note
		}
	}
	return result, nil
}

func (m *MemoryStore) ListNotes(_ context.Context) ([]domain.UserNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	notes := make([]domain.UserNote, 0, len(m.noteOrder))
	for _, key := range m.noteOrder {
		if note, ok := m.notes[key]; ok {
			notes = append(notes, note)
		}
	}
	return notes, nil
}

func (m *MemoryStore) SetNote(_ context.Context, note domain.UserNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.notes[note.ItemKey]; ok {
		note.CreatedAt = existing.CreatedAt
	} else {
		m.noteOrder = append(m.noteOrder, note.ItemKey)
	}
	m.notes[note.ItemKey] = note
	return nil
}

func (m *MemoryStore) UpdateNote(_ context.Context, note domain.UserNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.notes[note.ItemKey]
	if !ok {
		return ErrNotFound
	}
	note.CreatedAt = existing.CreatedAt
	m.notes[note.ItemKey] = note
	return nil
}

func (m *MemoryStore) DeleteNote(_ context.Context, itemKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[itemKey]; !ok {
		return nil
	}
	delete(m.notes, itemKey)
	m.noteOrder = removeString(m.noteOrder, itemKey)
	return nil
}

func (m *MemoryStore) DeleteAllNotes(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = make(map[string]domain.UserNote)
	m.noteOrder = nil
	return nil
}

func (m *MemoryStore) SearchNotes(_ context.Context, text string) ([]domain.UserNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(text))
	var notes []domain.UserNote
	for _, key := range m.noteOrder {
		note, ok := m.notes[key]
		if !ok {
			continue
		}
		if needle == "" ||
			strings.Contains(strings.ToLower(note.Text), needle) ||
			strings.Contains(strings.ToLower(note.ItemKey), needle) {
			notes = append(notes, note)
		}
	}
	if notes == nil {
		notes = []domain.UserNote{}
	}
	return notes, nil
}

// ---- migration flags ----

func (m *MemoryStore) MigrationFlag(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.flags[name]
	return ok, nil
}

func (m *MemoryStore) SetMigrationFlag(_ context.Context, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[name] = at
	return nil
}

// ---- helpers ----

func removeString(list []string, value string) []string {
	filtered := list[:0]
	for _, item := range list {
		if item != value {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func cloneItem(item domain.GlassItem) domain.GlassItem {
	item.Tags = cloneStrings(item.Tags)
	item.Synonyms = cloneStrings(item.Synonyms)
	item.StockTypes = cloneStrings(item.StockTypes)
	return item
}

func clonePurchase(record domain.PurchaseRecord) domain.PurchaseRecord {
	items := make([]domain.PurchaseRecordItem, len(record.Items))
	copy(items, record.Items)
	record.Items = items
	return record
}

func cloneProject(project domain.Project) domain.Project {
	project.Tags = append([]domain.ProjectChild(nil), project.Tags...)
	project.Techniques = append([]domain.ProjectChild(nil), project.Techniques...)
	project.References = append([]domain.ProjectChild(nil), project.References...)
	project.Steps = append([]domain.ProjectStep(nil), project.Steps...)
	project.GlassUsage = append([]domain.GlassUsage(nil), project.GlassUsage...)
	project.Images = append([]domain.ImageRef(nil), project.Images...)
	return project
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}
