package catalog

import (
	"errors"
	"testing"
	"time"
)

const databasePayload = `{
  "version": "3.0",
  "last_updated": "2025-04-02T08:30:00Z",
  "products": {
    "CIM:550": {
      "name": "Avocado",
      "coe": "104",
      "type": "rod",
      "status": "available",
      "added_date": "2024-11-05",
      "last_seen": "2025-04-02T08:30:00Z"
    },
    "EFF:591228": {
      "manufacturer": "effetre",
      "code": "591228",
      "name": "Periwinkle",
      "coe": "104",
      "status": "discontinued",
      "discontinued_date": "2025-01-15"
    },
    "BAD:1": {
      "coe": "104"
    }
  }
}`

func TestDecodeDatabase(t *testing.T) {
	result, err := DecodeDatabase([]byte(databasePayload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Version != "3.0" {
		t.Fatalf("version = %q", result.Version)
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(result.Items), result.Items)
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("got %d skips, want 1: %+v", len(result.Skipped), result.Skipped)
	}

	byKey := make(map[string]int)
	for i, item := range result.Items {
		byKey[item.NaturalKey] = i
	}

	// Identity falls back to the "MFR:CODE" map key.
	i, ok := byKey["cim-550-0"]
	if !ok {
		t.Fatalf("cim-550-0 missing: %v", byKey)
	}
	avocado := result.Items[i]
	if avocado.Manufacturer != "CIM" || avocado.SKU != "550" {
		t.Fatalf("identity from key wrong: %+v", avocado)
	}
	wantAdded := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	if !avocado.AddedDate.Equal(wantAdded) {
		t.Fatalf("added date = %v, want %v", avocado.AddedDate, wantAdded)
	}
	if len(avocado.StockTypes) != 1 || avocado.StockTypes[0] != "rod" {
		t.Fatalf("stock types = %v", avocado.StockTypes)
	}

	i, ok = byKey["effetre-591228-0"]
	if !ok {
		t.Fatalf("effetre-591228-0 missing: %v", byKey)
	}
	periwinkle := result.Items[i]
	if periwinkle.Status != "discontinued" {
		t.Fatalf("status = %q", periwinkle.Status)
	}
	if periwinkle.DiscontinuedDate == nil {
		t.Fatalf("discontinued date missing")
	}
}

func TestDecodeDatabaseRejectsBadShapes(t *testing.T) {
	for _, payload := range []string{"", "{bad", `{"version":"1"}`} {
		if _, err := DecodeDatabase([]byte(payload)); !errors.Is(err, ErrDecodingFailed) {
			t.Fatalf("payload %q: err = %v, want ErrDecodingFailed", payload, err)
		}
	}
}
