package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type GlassItemModel struct {
	NaturalKey       string `gorm:"primaryKey"`
	StableID         string `gorm:"uniqueIndex;size:16"`
	Name             string `gorm:"not null"`
	Manufacturer     string `gorm:"not null;index"`
	SKU              string `gorm:"not null"`
	COE              int    `gorm:"index"`
	Status           string `gorm:"not null;index"`
	Description      string `gorm:"type:text"`
	Tags             datatypes.JSON
	Synonyms         datatypes.JSON
	StockTypes       datatypes.JSON
	ManufacturerURL  string
	ImageURL         string
	ImagePath        string
	AddedDate        time.Time
	LastSeen         time.Time
	DiscontinuedDate *time.Time
}

type InventoryEntryModel struct {
	ID         string `gorm:"primaryKey"`
	ItemKey    string `gorm:"not null;index"`
	Type       string `gorm:"not null"`
	Quantity   float64
	Location   string
	Dimensions string
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time
}

type ShoppingEntryModel struct {
	ItemKey   string `gorm:"primaryKey"`
	Store     string `gorm:"primaryKey"`
	Type      string
	Subtype   string
	Quantity  float64
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type PurchaseModel struct {
	ID           string `gorm:"primaryKey"`
	Supplier     string `gorm:"not null"`
	PurchaseDate time.Time
	Shipping     float64
	Tax          float64
	Total        float64
	Notes        string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type PurchaseItemModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	PurchaseID string `gorm:"not null;index"`
	Position   int    `gorm:"not null"`
	ItemKey    string `gorm:"not null"`
	Type       string
	Quantity   float64
	Price      float64
}

// ProjectModel keeps the legacy serialized-blob columns alongside the
// promoted child tables until the one-time migration clears them.
type ProjectModel struct {
	ID                  string    `gorm:"primaryKey"`
	Title               string    `gorm:"not null"`
	Summary             string    `gorm:"type:text"`
	LegacyTags          string    `gorm:"type:text"`
	LegacyTechniques    string    `gorm:"type:text"`
	LegacyReferenceURLs string    `gorm:"type:text"`
	LegacyGlassUsage    string    `gorm:"type:text"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time
}

type ProjectChildModel struct {
	ID         string    `gorm:"primaryKey"`
	ProjectID  string    `gorm:"not null;index"`
	Kind       string    `gorm:"not null;index"`
	Value      string    `gorm:"type:text;not null"`
	OrderIndex int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type GlassUsageModel struct {
	ID         string `gorm:"primaryKey"`
	ProjectID  string `gorm:"not null;index"`
	ItemKey    string `gorm:"not null;index"`
	Type       string
	Quantity   float64
	OrderIndex int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type ImageRefModel struct {
	ID         string `gorm:"primaryKey"`
	ProjectID  string `gorm:"not null;index"`
	StorageKey string `gorm:"not null"`
	Caption    string
	OrderIndex int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type NoteModel struct {
	ItemKey   string    `gorm:"primaryKey"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type MigrationFlagModel struct {
	Name  string    `gorm:"primaryKey"`
	SetAt time.Time `gorm:"not null"`
}
