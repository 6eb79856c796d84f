package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const twoItemCatalog = `{
  "version": "2.1",
  "generated": "2025-03-01T12:00:00Z",
  "item_count": 2,
  "glassitems": [
    {
      "id": "cim-550",
      "code": "550",
      "name": "Avocado",
      "manufacturer": "cim",
      "manufacturer_description": "A rich mid green.",
      "synonyms": ["Guacamole", "\"unknown\""],
      "tags": ["green", " opaque ", "unknown", ""],
      "coe": "104",
      "stock_type": "rod",
      "manufacturer_url": "https://example.com/550",
      "image_url": "https://example.com/550.jpg",
      "image_path": "images/cim-550.jpg"
    },
    {
      "id": "bb-001",
      "code": "001",
      "name": "Lagoon",
      "manufacturer": "bb",
      "coe": "33"
    }
  ]
}`

func TestDecodeCatalog(t *testing.T) {
	result, err := Decode([]byte(twoItemCatalog))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Version != "2.1" {
		t.Fatalf("version = %q", result.Version)
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("unexpected skips: %+v", result.Skipped)
	}

	item := result.Items[0]
	if item.NaturalKey != "cim-550-0" {
		t.Fatalf("natural key = %q", item.NaturalKey)
	}
	if item.StableID != StableID("cim", "550") {
		t.Fatalf("stable id = %q", item.StableID)
	}
	if item.COE != 104 {
		t.Fatalf("coe = %d", item.COE)
	}
	// Quoted, blank and "unknown" entries are scrubbed from lists.
	if len(item.Tags) != 2 || item.Tags[0] != "green" || item.Tags[1] != "opaque" {
		t.Fatalf("tags = %v", item.Tags)
	}
	if len(item.Synonyms) != 1 || item.Synonyms[0] != "Guacamole" {
		t.Fatalf("synonyms = %v", item.Synonyms)
	}
	if len(item.StockTypes) != 1 || item.StockTypes[0] != "rod" {
		t.Fatalf("stock types = %v", item.StockTypes)
	}

	if result.Items[1].NaturalKey != "bb-001-0" {
		t.Fatalf("second key = %q", result.Items[1].NaturalKey)
	}
}

func TestDecodeRejectsBadShapes(t *testing.T) {
	for _, payload := range []string{"", "   ", "[]", `[{"code":"1"}]`, "{not json", `{"version":"1"}`} {
		if _, err := Decode([]byte(payload)); !errors.Is(err, ErrDecodingFailed) {
			t.Fatalf("payload %q: err = %v, want ErrDecodingFailed", payload, err)
		}
	}
}

func TestDecodeSkipsBadRecords(t *testing.T) {
	payload := `{
  "glassitems": [
    {"code": "550", "name": "Avocado", "manufacturer": "cim"},
    {"code": "", "name": "Nameless", "manufacturer": "cim"},
    {"code": "552", "name": "", "manufacturer": "cim"},
    42
  ]
}`
	result, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(result.Items))
	}
	if len(result.Skipped) != 3 {
		t.Fatalf("got %d skips, want 3: %+v", len(result.Skipped), result.Skipped)
	}
	if result.Skipped[0].Index != 1 || result.Skipped[2].Index != 3 {
		t.Fatalf("skip indexes wrong: %+v", result.Skipped)
	}
}

func TestToDomainLenientCOE(t *testing.T) {
	record := ItemRecord{Code: "550", Name: "Avocado", Manufacturer: "cim", COE: "about 104"}
	item, err := record.ToDomain(time.Now())
	if err != nil {
		t.Fatalf("to domain: %v", err)
	}
	if item.COE != 0 {
		t.Fatalf("unparseable coe = %d, want 0", item.COE)
	}
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "glassitems.json")
	if err := os.WriteFile(present, []byte(twoItemCatalog), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	path, err := ResolveFile([]string{filepath.Join(dir, "missing.json"), present})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if path != present {
		t.Fatalf("resolved %q, want %q", path, present)
	}

	_, err = ResolveFile([]string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")})
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
	var notFound *FileNotFoundError
	if !errors.As(err, &notFound) || len(notFound.Attempted) != 2 {
		t.Fatalf("attempted list missing: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glassitems.json")
	if err := os.WriteFile(path, []byte(twoItemCatalog), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}
}
