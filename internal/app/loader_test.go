package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"molten/pkg/catalog"
	"molten/pkg/domain"
	"molten/pkg/store"
)

const loaderCatalog = `{
  "version": "2.1",
  "glassitems": [
    {"code": "550", "name": "Avocado", "manufacturer": "cim", "coe": "104"},
    {"code": "551", "name": "Salsa Verde", "manufacturer": "cim", "coe": "104"},
    {"code": "", "name": "Broken", "manufacturer": "cim"}
  ]
}`

const loaderDatabase = `{
  "version": "3.0",
  "products": {
    "CIM:550": {"name": "Avocado", "coe": "104"}
  }
}`

func newLoaderFixture() (*LoaderService, *CatalogService) {
	svc := NewCatalogService(store.NewMemoryStore(), nil)
	return NewLoaderService(svc), svc
}

func TestLoadPathCatalogFormat(t *testing.T) {
	ctx := context.Background()
	loader, catalogSvc := newLoaderFixture()

	path := filepath.Join(t.TempDir(), "glassitems.json")
	if err := os.WriteFile(path, []byte(loaderCatalog), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	report, err := loader.LoadPath(ctx, path, ImportOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if report.Format != "catalog" {
		t.Fatalf("format = %q", report.Format)
	}
	if report.Decoded != 2 || len(report.Skipped) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Stats.New != 2 {
		t.Fatalf("stats = %+v", report.Stats)
	}

	if _, found, _ := catalogSvc.GetItem(ctx, "cim-550-0"); !found {
		t.Fatalf("item not merged")
	}
}

func TestLoadBytesDatabaseFormat(t *testing.T) {
	ctx := context.Background()
	loader, _ := newLoaderFixture()

	report, err := loader.LoadBytes(ctx, "glass_database.json", []byte(loaderDatabase), ImportOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if report.Format != "database" {
		t.Fatalf("format = %q", report.Format)
	}
	if report.Stats.New != 1 {
		t.Fatalf("stats = %+v", report.Stats)
	}
}

func TestLoadBytesDatabaseKeepsDiscontinued(t *testing.T) {
	ctx := context.Background()
	loader, catalogSvc := newLoaderFixture()

	payload := `{
  "version": "3.0",
  "products": {
    "CIM:549": {
      "name": "Chalcedony",
      "coe": "104",
      "status": "discontinued",
      "added_date": "2022-03-15",
      "last_seen": "2023-05-30",
      "discontinued_date": "2023-06-01"
    }
  }
}`
	report, err := loader.LoadBytes(ctx, "glass_database.json", []byte(payload), ImportOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if report.Stats.New != 1 {
		t.Fatalf("stats = %+v", report.Stats)
	}

	got, found, _ := catalogSvc.GetItem(ctx, "cim-549-0")
	if !found {
		t.Fatalf("item not merged")
	}
	if got.Status != domain.StatusDiscontinued {
		t.Fatalf("status = %q", got.Status)
	}
	if got.DiscontinuedDate == nil || got.DiscontinuedDate.Format("2006-01-02") != "2023-06-01" {
		t.Fatalf("discontinued date = %v", got.DiscontinuedDate)
	}
	if got.AddedDate.Format("2006-01-02") != "2022-03-15" {
		t.Fatalf("added date = %v", got.AddedDate)
	}
}

func TestLoadBytesCSVFormat(t *testing.T) {
	ctx := context.Background()
	loader, _ := newLoaderFixture()

	payload := "manufacturer,code,name,start_date,end_date,manufacturer_description,tags,synonyms,coe,type,manufacturer_url,image_path,image_url,stock_type\n" +
		"cim,550,Avocado,,,,,,104,rod,,,,\n"
	report, err := loader.LoadBytes(ctx, "scrape.csv", []byte(payload), ImportOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if report.Format != "csv" {
		t.Fatalf("format = %q", report.Format)
	}
	if report.Stats.New != 1 {
		t.Fatalf("stats = %+v", report.Stats)
	}
}

func TestLoadBytesMaxItems(t *testing.T) {
	ctx := context.Background()
	loader, _ := newLoaderFixture()

	report, err := loader.LoadBytes(ctx, "glassitems.json", []byte(loaderCatalog), ImportOptions{MaxItems: 1})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if report.Stats.New != 1 {
		t.Fatalf("stats = %+v", report.Stats)
	}
}

func TestLoadPathMissingFileListsCandidates(t *testing.T) {
	ctx := context.Background()
	loader, _ := newLoaderFixture()

	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(cwd)

	_, err = loader.LoadPath(ctx, "", ImportOptions{})
	if err == nil {
		t.Fatalf("expected error for missing catalog")
	}
	var notFound *catalog.FileNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want FileNotFoundError", err)
	}
	if len(notFound.Attempted) != len(catalog.DefaultCandidates) {
		t.Fatalf("attempted = %v", notFound.Attempted)
	}
}
