package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"molten/pkg/catalog"
	"molten/pkg/domain"
)

// LoaderService reads catalog payloads from disk and merges them into the
// store. It accepts the nested catalog shape, the scraper database shape and
// the scraper CSV export, picking the decoder from the payload itself.
type LoaderService struct {
	catalog *CatalogService
}

func NewLoaderService(catalogSvc *CatalogService) *LoaderService {
	return &LoaderService{catalog: catalogSvc}
}

// LoadReport combines decode and merge outcomes of one load.
type LoadReport struct {
	Path    string                `json:"path"`
	Format  string                `json:"format"`
	Decoded int                   `json:"decoded"`
	Skipped []catalog.SkippedItem `json:"skipped,omitempty"`
	Stats   ImportStats           `json:"stats"`
}

// LoadPath decodes the file at path and merges it. An empty path probes the
// default candidate locations.
func (s *LoaderService) LoadPath(ctx context.Context, path string, opts ImportOptions) (LoadReport, error) {
	if path == "" {
		resolved, err := catalog.ResolveFile(catalog.DefaultCandidates)
		if err != nil {
			return LoadReport{}, err
		}
		path = resolved
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadReport{}, fmt.Errorf("read %s: %w", path, err)
	}
	report, err := s.LoadBytes(ctx, path, data, opts)
	if err != nil {
		return LoadReport{}, err
	}
	report.Path = path
	return report, nil
}

// LoadBytes decodes an in-memory payload and merges it. name is only used
// for format sniffing.
func (s *LoaderService) LoadBytes(ctx context.Context, name string, data []byte, opts ImportOptions) (LoadReport, error) {
	var (
		result catalog.DecodeResult
		format string
		err    error
	)
	switch detectFormat(name, data) {
	case "csv":
		format = "csv"
		result, err = catalog.DecodeCSV(bytes.NewReader(data))
	case "database":
		format = "database"
		result, err = catalog.DecodeDatabase(data)
	default:
		format = "catalog"
		result, err = catalog.Decode(data)
	}
	if err != nil {
		return LoadReport{}, err
	}
	for _, skipped := range result.Skipped {
		logFromCtx(ctx).Warn("skipped catalog record", "index", skipped.Index, "reason", skipped.Reason)
	}
	stats, err := s.catalog.ImportItems(ctx, limitItems(result.Items, opts), opts)
	if err != nil {
		return LoadReport{}, err
	}
	return LoadReport{
		Format:  format,
		Decoded: len(result.Items),
		Skipped: result.Skipped,
		Stats:   stats,
	}, nil
}

func limitItems(items []domain.GlassItem, opts ImportOptions) []domain.GlassItem {
	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		return items[:opts.MaxItems]
	}
	return items
}

// detectFormat sniffs the payload shape. CSV is keyed off the extension;
// JSON payloads with a top-level "products" object use the database decoder.
func detectFormat(path string, data []byte) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return "csv"
	}
	var probe struct {
		Products json.RawMessage `json:"products"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && len(probe.Products) > 0 {
		return "database"
	}
	return "catalog"
}
