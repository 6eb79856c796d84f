package store

import (
	"context"
	"fmt"
	"time"

	"molten/pkg/domain"
)

// Every method returns plain domain values: rows are converted to value
// records at the fetch boundary and no live ORM object ever escapes a store.
// Deletes are idempotent across all entities: deleting an absent key is a
// no-op returning nil.

// GlassItemStore persists catalog entries keyed by natural key.
type GlassItemStore interface {
	CreateItem(ctx context.Context, item domain.GlassItem) error
	GetItem(ctx context.Context, key string) (domain.GlassItem, bool, error)
	GetItemByStableID(ctx context.Context, stableID string) (domain.GlassItem, bool, error)
	ListItems(ctx context.Context) ([]domain.GlassItem, error)
	UpdateItem(ctx context.Context, item domain.GlassItem) error
	UpsertItems(ctx context.Context, items []domain.GlassItem) error
}

// InventoryStore persists owned-glass entries.
type InventoryStore interface {
	CreateEntry(ctx context.Context, entry domain.InventoryEntry) error
	GetEntry(ctx context.Context, id string) (domain.InventoryEntry, bool, error)
	ListEntries(ctx context.Context) ([]domain.InventoryEntry, error)
	ListEntriesByItem(ctx context.Context, itemKey string) ([]domain.InventoryEntry, error)
	UpdateEntry(ctx context.Context, entry domain.InventoryEntry) error
	DeleteEntry(ctx context.Context, id string) error
}

// ShoppingListStore persists want-to-buy entries with set semantics: one
// entry per (item key, store) pair, later writes replace earlier ones.
type ShoppingListStore interface {
	SetShoppingEntry(ctx context.Context, entry domain.ShoppingListEntry) error
	GetShoppingEntry(ctx context.Context, itemKey, storeName string) (domain.ShoppingListEntry, bool, error)
	ListShoppingEntries(ctx context.Context) ([]domain.ShoppingListEntry, error)
	ListShoppingEntriesByStore(ctx context.Context, storeName string) ([]domain.ShoppingListEntry, error)
	DeleteShoppingEntry(ctx context.Context, itemKey, storeName string) error
}

// PurchaseStore persists purchase headers with their owned line items.
// Deleting a purchase cascades to its lines.
type PurchaseStore interface {
	CreatePurchase(ctx context.Context, record domain.PurchaseRecord) error
	GetPurchase(ctx context.Context, id string) (domain.PurchaseRecord, bool, error)
	ListPurchases(ctx context.Context) ([]domain.PurchaseRecord, error)
	UpdatePurchase(ctx context.Context, record domain.PurchaseRecord) error
	DeletePurchase(ctx context.Context, id string) error
}

// LegacyProjectBlobs is the serialized pre-migration state of one project:
// each field holds the raw blob for one migration phase, empty once that
// phase has rewritten it into child records.
type LegacyProjectBlobs struct {
	ProjectID     string
	Tags          string
	Techniques    string
	ReferenceURLs string
	GlassUsage    string
}

// ChildKind selects one of the owned project collections promoted out of the
// legacy blobs.
type ChildKind string

const (
	ChildTag       ChildKind = "tag"
	ChildTechnique ChildKind = "technique"
	ChildReference ChildKind = "reference"
	ChildStep      ChildKind = "step"
)

// ProjectStore persists projects and their owned child collections.
type ProjectStore interface {
	CreateProject(ctx context.Context, project domain.Project) error
	GetProject(ctx context.Context, id string) (domain.Project, bool, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	UpdateProject(ctx context.Context, project domain.Project) error
	DeleteProject(ctx context.Context, id string) error

	AddImageRef(ctx context.Context, projectID string, ref domain.ImageRef) error
	DeleteImageRef(ctx context.Context, projectID, refID string) error

	// Migration support.
	ListLegacyProjectBlobs(ctx context.Context) ([]LegacyProjectBlobs, error)
	AddProjectChildren(ctx context.Context, projectID string, kind ChildKind, children []domain.ProjectChild) error
	AddGlassUsage(ctx context.Context, projectID string, usage []domain.GlassUsage) error
	ClearLegacyBlob(ctx context.Context, projectID string, kind ChildKind) error
	ClearLegacyGlassUsage(ctx context.Context, projectID string) error
}

// NoteStore persists per-item notes; at most one note exists per item key.
type NoteStore interface {
	CreateNote(ctx context.Context, note domain.UserNote) error
	GetNote(ctx context.Context, itemKey string) (domain.UserNote, bool, error)
	GetNotesForItems(ctx context.Context, itemKeys []string) (map[string]domain.UserNote, error)
	ListNotes(ctx context.Context) ([]domain.UserNote, error)
	SetNote(ctx context.Context, note domain.UserNote) error
	UpdateNote(ctx context.Context, note domain.UserNote) error
	DeleteNote(ctx context.Context, itemKey string) error
	DeleteAllNotes(ctx context.Context) error
	SearchNotes(ctx context.Context, text string) ([]domain.UserNote, error)
}

// MigrationFlagStore tracks which one-time migration phases have completed.
type MigrationFlagStore interface {
	MigrationFlag(ctx context.Context, name string) (bool, error)
	SetMigrationFlag(ctx context.Context, name string, at time.Time) error
}

// Store bundles every repository behind one backend.
type Store interface {
	GlassItemStore
	InventoryStore
	ShoppingListStore
	PurchaseStore
	ProjectStore
	NoteStore
	MigrationFlagStore
}

// Config selects and parameterizes a backend. It is built once at startup
// and handed to Open; there is no package-level backend switch.
type Config struct {
	Backend     string // "postgres" or "memory"
	DatabaseURL string // required for postgres
}

// Open constructs the configured backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres", "":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("store: database URL required for postgres backend")
		}
		return NewGormStore(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
