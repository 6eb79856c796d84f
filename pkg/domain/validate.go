package domain

import (
	"fmt"
	"strings"
)

// ValidationResult collects human-readable problems with a record. It is
// returned as a value rather than an error so callers can surface per-field
// messages.
type ValidationResult struct {
	Messages []string `json:"messages,omitempty"`
}

// Valid reports whether no problems were recorded.
func (v ValidationResult) Valid() bool {
	return len(v.Messages) == 0
}

func (v *ValidationResult) addf(format string, args ...any) {
	v.Messages = append(v.Messages, fmt.Sprintf(format, args...))
}

// Validate checks the invariants a catalog entry must hold before it is
// stored: non-empty identity fields and an in-range COE.
func (g GlassItem) Validate() ValidationResult {
	var res ValidationResult
	if strings.TrimSpace(g.NaturalKey) == "" {
		res.addf("natural key is required")
	}
	if strings.TrimSpace(g.Name) == "" {
		res.addf("name is required")
	}
	if strings.TrimSpace(g.Manufacturer) == "" {
		res.addf("manufacturer is required")
	}
	if strings.TrimSpace(g.SKU) == "" {
		res.addf("sku is required")
	}
	if g.COE != 0 && (g.COE < COEMin || g.COE > COEMax) {
		res.addf("coe %d outside valid range %d-%d", g.COE, COEMin, COEMax)
	}
	switch g.Status {
	case StatusAvailable, StatusDiscontinued, "":
	default:
		res.addf("unknown status %q", g.Status)
	}
	return res
}

func (e InventoryEntry) Validate() ValidationResult {
	var res ValidationResult
	if strings.TrimSpace(e.ItemKey) == "" {
		res.addf("item key is required")
	}
	if e.Type == "" {
		res.addf("type is required")
	}
	if e.Quantity < 0 {
		res.addf("quantity must not be negative")
	}
	return res
}

func (e ShoppingListEntry) Validate() ValidationResult {
	var res ValidationResult
	if strings.TrimSpace(e.ItemKey) == "" {
		res.addf("item key is required")
	}
	if strings.TrimSpace(e.Store) == "" {
		res.addf("store is required")
	}
	if e.Quantity <= 0 {
		res.addf("quantity must be greater than zero")
	}
	return res
}

func (r PurchaseRecord) Validate() ValidationResult {
	var res ValidationResult
	if strings.TrimSpace(r.Supplier) == "" {
		res.addf("supplier is required")
	}
	if r.PurchaseDate.IsZero() {
		res.addf("purchase date is required")
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.ItemKey) == "" {
			res.addf("line %d: item key is required", i+1)
		}
		if item.Quantity <= 0 {
			res.addf("line %d: quantity must be greater than zero", i+1)
		}
		if item.Price < 0 {
			res.addf("line %d: price must not be negative", i+1)
		}
	}
	return res
}

func (p Project) Validate() ValidationResult {
	var res ValidationResult
	if strings.TrimSpace(p.Title) == "" {
		res.addf("title is required")
	}
	return res
}

// Validate requires both fields non-empty after trimming.
func (n UserNote) Validate() ValidationResult {
	var res ValidationResult
	if strings.TrimSpace(n.ItemKey) == "" {
		res.addf("item key is required")
	}
	if strings.TrimSpace(n.Text) == "" {
		res.addf("text is required")
	}
	return res
}
