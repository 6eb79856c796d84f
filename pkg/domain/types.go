package domain

import (
	"fmt"
	"strings"
	"time"
)

type ItemStatus string

const (
	StatusAvailable    ItemStatus = "available"
	StatusDiscontinued ItemStatus = "discontinued"
)

// StockType classifies the physical form glass is stocked in.
type StockType string

const (
	StockRod    StockType = "rod"
	StockFrit   StockType = "frit"
	StockSheet  StockType = "sheet"
	StockTube   StockType = "tube"
	StockPowder StockType = "powder"
)

const (
	// COEMin and COEMax bound the coefficient-of-expansion values accepted
	// for manually entered items.
	COEMin = 80
	COEMax = 120
)

// GlassItem is a catalog entry. Items are never hard-deleted; re-imports flip
// Status to discontinued instead.
type GlassItem struct {
	NaturalKey       string     `json:"naturalKey"`
	StableID         string     `json:"stableId,omitempty"`
	Name             string     `json:"name"`
	Manufacturer     string     `json:"manufacturer"`
	SKU              string     `json:"sku"`
	COE              int        `json:"coe"`
	Status           ItemStatus `json:"status"`
	Description      string     `json:"description,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Synonyms         []string   `json:"synonyms,omitempty"`
	StockTypes       []string   `json:"stockTypes,omitempty"`
	ManufacturerURL  string     `json:"manufacturerUrl,omitempty"`
	ImageURL         string     `json:"imageUrl,omitempty"`
	ImagePath        string     `json:"imagePath,omitempty"`
	AddedDate        time.Time  `json:"addedDate"`
	LastSeen         time.Time  `json:"lastSeen"`
	DiscontinuedDate *time.Time `json:"discontinuedDate,omitempty"`
}

// NaturalKey derives the stable catalog identity from manufacturer, SKU and a
// disambiguating sequence, e.g. ("CIM", "550", 0) -> "cim-550-0".
func NaturalKey(manufacturer, sku string, sequence int) string {
	return strings.ToLower(fmt.Sprintf("%s-%s-%d",
		strings.TrimSpace(manufacturer), strings.TrimSpace(sku), sequence))
}

// InventoryEntry records glass the user actually owns. Multiple entries per
// item are expected (different forms, different locations).
type InventoryEntry struct {
	ID         string    `json:"id"`
	ItemKey    string    `json:"itemKey"`
	Type       StockType `json:"type"`
	Quantity   float64   `json:"quantity"`
	Location   string    `json:"location,omitempty"`
	Dimensions string    `json:"dimensions,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ShoppingListEntry is a want-to-buy record. Identity is (ItemKey, Store);
// setting an entry for the same pair replaces the earlier one.
type ShoppingListEntry struct {
	ItemKey   string    `json:"itemKey"`
	Store     string    `json:"store"`
	Type      StockType `json:"type,omitempty"`
	Subtype   string    `json:"subtype,omitempty"`
	Quantity  float64   `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PurchaseRecord is a purchase header owning an ordered list of line items.
// Deleting the record deletes its lines.
type PurchaseRecord struct {
	ID           string               `json:"id"`
	Supplier     string               `json:"supplier"`
	PurchaseDate time.Time            `json:"purchaseDate"`
	Shipping     float64              `json:"shipping,omitempty"`
	Tax          float64              `json:"tax,omitempty"`
	Total        float64              `json:"total"`
	Notes        string               `json:"notes,omitempty"`
	Items        []PurchaseRecordItem `json:"items"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

type PurchaseRecordItem struct {
	ItemKey  string    `json:"itemKey"`
	Type     StockType `json:"type,omitempty"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
}

// Project is a plan/log with owned child collections. Children carry an order
// index and belong to exactly one project; deleting the project cascades.
type Project struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Summary    string         `json:"summary,omitempty"`
	Tags       []ProjectChild `json:"tags,omitempty"`
	Techniques []ProjectChild `json:"techniques,omitempty"`
	References []ProjectChild `json:"references,omitempty"`
	Steps      []ProjectStep  `json:"steps,omitempty"`
	GlassUsage []GlassUsage   `json:"glassUsage,omitempty"`
	Images     []ImageRef     `json:"images,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// ProjectChild is a small owned value (tag, technique or reference URL)
// promoted out of the legacy serialized-blob representation.
type ProjectChild struct {
	ID         string    `json:"id"`
	Value      string    `json:"value"`
	OrderIndex int       `json:"orderIndex"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ProjectStep struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	OrderIndex int       `json:"orderIndex"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GlassUsage links a project to a catalog item it consumed.
type GlassUsage struct {
	ID         string    `json:"id"`
	ItemKey    string    `json:"itemKey"`
	Type       StockType `json:"type,omitempty"`
	Quantity   float64   `json:"quantity"`
	OrderIndex int       `json:"orderIndex"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ImageRef is image metadata owned by a project. The binary lives in object
// storage under StorageKey and is not owned by the metadata row.
type ImageRef struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"-"`
	Caption    string    `json:"caption,omitempty"`
	OrderIndex int       `json:"orderIndex"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UserNote is a free-text annotation; at most one exists per item key.
type UserNote struct {
	ItemKey   string    `json:"itemKey"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
