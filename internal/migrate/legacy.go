package migrate

import (
	"encoding/json"
	"fmt"
	"strings"

	"molten/pkg/domain"
)

// decodeStringList parses a legacy serialized list. The canonical encoding
// is a JSON string array; very old records carry a bare comma-joined string.
func decodeStringList(blob string) ([]string, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, nil
	}
	if strings.HasPrefix(blob, "[") {
		var values []string
		if err := json.Unmarshal([]byte(blob), &values); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return cleanValues(values), nil
	}
	return cleanValues(strings.Split(blob, ",")), nil
}

func cleanValues(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// legacyUsage is one element of the serialized glass-usage blob. Field names
// drifted across app versions, so both spellings are accepted.
type legacyUsage struct {
	ItemKey  string  `json:"itemKey"`
	ItemID   string  `json:"glass_item_id"`
	Type     string  `json:"type"`
	Quantity float64 `json:"quantity"`
}

// decodeGlassUsage parses the serialized glass-usage blob into usage rows.
// Order indexes follow blob order.
func decodeGlassUsage(blob string) ([]domain.GlassUsage, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, nil
	}
	var raw []legacyUsage
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("decode glass usage: %w", err)
	}
	var usage []domain.GlassUsage
	for i, entry := range raw {
		key := strings.TrimSpace(entry.ItemKey)
		if key == "" {
			key = strings.TrimSpace(entry.ItemID)
		}
		if key == "" {
			return nil, fmt.Errorf("decode glass usage: entry %d has no item key", i)
		}
		usage = append(usage, domain.GlassUsage{
			ItemKey:    key,
			Type:       domain.StockType(strings.TrimSpace(entry.Type)),
			Quantity:   entry.Quantity,
			OrderIndex: i,
		})
	}
	return usage, nil
}
