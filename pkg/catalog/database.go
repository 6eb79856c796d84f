package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"molten/pkg/domain"
)

// The glass database file is the scraper toolchain's persisted state: a map
// keyed "MFR:CODE" with lifecycle tracking fields alongside the scraped
// product data.

type databaseFile struct {
	Version     string                    `json:"version"`
	LastUpdated string                    `json:"last_updated"`
	Products    map[string]databaseRecord `json:"products"`
}

type databaseRecord struct {
	ItemRecord
	Status           string `json:"status"`
	AddedDate        string `json:"added_date"`
	LastSeen         string `json:"last_seen"`
	DiscontinuedDate string `json:"discontinued_date"`
	Type             string `json:"type"`
}

// DecodeDatabase parses a glass database payload into domain items. Records
// missing required fields are skipped and reported, matching Decode.
func DecodeDatabase(data []byte) (DecodeResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return DecodeResult{}, fmt.Errorf("%w: empty input", ErrDecodingFailed)
	}
	var file databaseFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return DecodeResult{}, fmt.Errorf("%w: %v", ErrDecodingFailed, err)
	}
	if file.Products == nil {
		return DecodeResult{}, fmt.Errorf("%w: missing \"products\" map", ErrDecodingFailed)
	}

	result := DecodeResult{Version: file.Version, Generated: file.LastUpdated}
	now := time.Now().UTC()
	index := 0
	for key, record := range file.Products {
		item, err := record.toDomain(key, now)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Index: index, Reason: fmt.Sprintf("%s: %v", key, err)})
			index++
			continue
		}
		result.Items = append(result.Items, item)
		index++
	}
	return result, nil
}

func (r databaseRecord) toDomain(key string, now time.Time) (domain.GlassItem, error) {
	// Keys are "MFR:CODE"; fall back to the key when the record omits the
	// identity fields.
	if r.Manufacturer == "" || r.Code == "" {
		mfr, code, ok := strings.Cut(key, ":")
		if ok {
			if r.Manufacturer == "" {
				r.Manufacturer = mfr
			}
			if r.Code == "" {
				r.Code = code
			}
		}
	}
	item, err := r.ItemRecord.ToDomain(now)
	if err != nil {
		return domain.GlassItem{}, err
	}
	if r.Type != "" && len(item.StockTypes) == 0 {
		item.StockTypes = []string{strings.TrimSpace(r.Type)}
	}
	if r.Status == string(domain.StatusDiscontinued) {
		item.Status = domain.StatusDiscontinued
	}
	if t, ok := parseDate(r.AddedDate); ok {
		item.AddedDate = t
	}
	if t, ok := parseDate(r.LastSeen); ok {
		item.LastSeen = t
	}
	if t, ok := parseDate(r.DiscontinuedDate); ok {
		item.DiscontinuedDate = &t
	}
	return item, nil
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
