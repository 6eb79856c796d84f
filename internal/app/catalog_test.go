package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"molten/pkg/catalog"
	"molten/pkg/domain"
	"molten/pkg/store"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newCatalogFixture() (*CatalogService, *store.MemoryStore) {
	st := store.NewMemoryStore()
	svc := NewCatalogService(st, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, st
}

func scrapedItem(key, mfr, sku, name string) domain.GlassItem {
	return domain.GlassItem{
		NaturalKey:   key,
		Name:         name,
		Manufacturer: mfr,
		SKU:          sku,
		COE:          104,
		Status:       domain.StatusAvailable,
	}
}

func TestImportItemsNew(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture()

	stats, err := svc.ImportItems(ctx, []domain.GlassItem{
		scrapedItem("cim-550-0", "cim", "550", "Avocado"),
	}, ImportOptions{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.New != 1 || stats.Updated != 0 || stats.Discontinued != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	got, found, err := svc.GetItem(ctx, "cim-550-0")
	if err != nil || !found {
		t.Fatalf("get: %v found=%v", err, found)
	}
	if got.StableID == "" {
		t.Fatalf("new item got no stable id")
	}
	if !got.AddedDate.Equal(fixedNow) {
		t.Fatalf("added date = %v", got.AddedDate)
	}
	if got.Status != domain.StatusAvailable {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestImportItemsUpdateAndUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture()

	batch := []domain.GlassItem{
		scrapedItem("cim-550-0", "cim", "550", "Avocado"),
		scrapedItem("cim-551-0", "cim", "551", "Salsa Verde"),
	}
	if _, err := svc.ImportItems(ctx, batch, ImportOptions{}); err != nil {
		t.Fatalf("first import: %v", err)
	}
	first, _, _ := svc.GetItem(ctx, "cim-550-0")

	svc.now = func() time.Time { return fixedNow.Add(24 * time.Hour) }
	batch[0].Name = "Avocado (new recipe)"
	stats, err := svc.ImportItems(ctx, batch, ImportOptions{})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if stats.Updated != 1 || stats.Unchanged != 1 || stats.New != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	got, _, _ := svc.GetItem(ctx, "cim-550-0")
	if got.Name != "Avocado (new recipe)" {
		t.Fatalf("name = %q", got.Name)
	}
	if !got.AddedDate.Equal(first.AddedDate) {
		t.Fatalf("added date rewritten: %v", got.AddedDate)
	}
	if got.StableID != first.StableID {
		t.Fatalf("stable id changed: %q vs %q", got.StableID, first.StableID)
	}
	if !got.LastSeen.After(first.LastSeen) {
		t.Fatalf("last seen not bumped: %v", got.LastSeen)
	}

	unchanged, _, _ := svc.GetItem(ctx, "cim-551-0")
	if !unchanged.LastSeen.Equal(fixedNow.Add(24 * time.Hour)) {
		t.Fatalf("unchanged last seen = %v", unchanged.LastSeen)
	}
}

func TestImportItemsDiscontinueAndReactivate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture()

	batch := []domain.GlassItem{
		scrapedItem("cim-550-0", "cim", "550", "Avocado"),
		scrapedItem("cim-551-0", "cim", "551", "Salsa Verde"),
		scrapedItem("bb-001-0", "bb", "001", "Lagoon"),
	}
	if _, err := svc.ImportItems(ctx, batch, ImportOptions{}); err != nil {
		t.Fatalf("seed import: %v", err)
	}

	// Next cim scrape is missing 551; bb was not scraped at all.
	stats, err := svc.ImportItems(ctx, batch[:1], ImportOptions{Manufacturers: []string{"cim"}})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.Discontinued != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	gone, _, _ := svc.GetItem(ctx, "cim-551-0")
	if gone.Status != domain.StatusDiscontinued || gone.DiscontinuedDate == nil {
		t.Fatalf("not discontinued: %+v", gone)
	}
	untouched, _, _ := svc.GetItem(ctx, "bb-001-0")
	if untouched.Status != domain.StatusAvailable {
		t.Fatalf("unscraped manufacturer was swept: %+v", untouched)
	}

	// 551 reappears in a later scrape.
	stats, err = svc.ImportItems(ctx, batch[:2], ImportOptions{Manufacturers: []string{"cim"}})
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if stats.Reactivated != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	back, _, _ := svc.GetItem(ctx, "cim-551-0")
	if back.Status != domain.StatusAvailable || back.DiscontinuedDate != nil {
		t.Fatalf("not reactivated: %+v", back)
	}
}

func TestImportItemsKeepsDatabaseLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture()

	added := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)
	lastSeen := time.Date(2023, 5, 30, 0, 0, 0, 0, time.UTC)
	discontinued := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	retired := scrapedItem("cim-549-0", "cim", "549", "Chalcedony")
	retired.Status = domain.StatusDiscontinued
	retired.AddedDate = added
	retired.LastSeen = lastSeen
	retired.DiscontinuedDate = &discontinued

	// Bootstrapping from a database backup must not resurrect its
	// discontinued records.
	stats, err := svc.ImportItems(ctx, []domain.GlassItem{retired}, ImportOptions{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.New != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	got, _, _ := svc.GetItem(ctx, "cim-549-0")
	if got.Status != domain.StatusDiscontinued {
		t.Fatalf("status = %q", got.Status)
	}
	if got.DiscontinuedDate == nil || !got.DiscontinuedDate.Equal(discontinued) {
		t.Fatalf("discontinued date = %v", got.DiscontinuedDate)
	}
	if !got.AddedDate.Equal(added) || !got.LastSeen.Equal(lastSeen) {
		t.Fatalf("dates rewritten: added=%v lastSeen=%v", got.AddedDate, got.LastSeen)
	}
}

func TestImportItemsHonorsIncomingDiscontinued(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture()

	live := scrapedItem("cim-550-0", "cim", "550", "Avocado")
	if _, err := svc.ImportItems(ctx, []domain.GlassItem{live}, ImportOptions{}); err != nil {
		t.Fatalf("seed import: %v", err)
	}

	retired := live
	retired.Status = domain.StatusDiscontinued
	stats, err := svc.ImportItems(ctx, []domain.GlassItem{retired}, ImportOptions{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.Discontinued != 1 || stats.Unchanged != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	got, _, _ := svc.GetItem(ctx, "cim-550-0")
	if got.Status != domain.StatusDiscontinued {
		t.Fatalf("status = %q", got.Status)
	}
	if got.DiscontinuedDate == nil || !got.DiscontinuedDate.Equal(fixedNow) {
		t.Fatalf("discontinued date = %v", got.DiscontinuedDate)
	}
}

func TestImportItemsDryRun(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture()

	stats, err := svc.ImportItems(ctx, []domain.GlassItem{
		scrapedItem("cim-550-0", "cim", "550", "Avocado"),
	}, ImportOptions{DryRun: true})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.New != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, found, _ := svc.GetItem(ctx, "cim-550-0"); found {
		t.Fatalf("dry run wrote to the store")
	}
}

func TestSearchWithInventory(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewCatalogService(st, nil)
	inv := NewInventoryService(st)

	if _, err := svc.CreateItem(ctx, scrapedItem("cim-550-0", "cim", "550", "Avocado")); err != nil {
		t.Fatalf("create item: %v", err)
	}
	for _, qty := range []float64{4, 2.5} {
		if _, err := inv.CreateEntry(ctx, domain.InventoryEntry{ItemKey: "cim-550-0", Type: domain.StockRod, Quantity: qty}); err != nil {
			t.Fatalf("create entry: %v", err)
		}
	}
	if _, err := svc.SetNote(ctx, domain.UserNote{ItemKey: "cim-550-0", Text: "strikes dark"}); err != nil {
		t.Fatalf("set note: %v", err)
	}

	summaries, err := svc.SearchWithInventory(ctx, catalog.Constraints{Query: "avocado"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries", len(summaries))
	}
	if summaries[0].TotalQuantity != 6.5 {
		t.Fatalf("total = %v", summaries[0].TotalQuantity)
	}
	if !summaries[0].HasNote {
		t.Fatalf("note flag missing")
	}
}

func TestResolveDeepLinkWithoutCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture()

	item := scrapedItem("cim-550-0", "cim", "550", "Avocado")
	item.StableID = "A3F9K2"
	if _, err := svc.CreateItem(ctx, item); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, found, err := svc.ResolveDeepLink(ctx, "A3F9K2")
	if err != nil || !found {
		t.Fatalf("resolve: %v found=%v", err, found)
	}
	if got.NaturalKey != "cim-550-0" {
		t.Fatalf("resolved %q", got.NaturalKey)
	}

	if _, found, err := svc.ResolveDeepLink(ctx, "zzzzzz"); err != nil || found {
		t.Fatalf("unknown id: found=%v err=%v", found, err)
	}
	if _, found, err := svc.ResolveDeepLink(ctx, "  "); err != nil || found {
		t.Fatalf("blank id: found=%v err=%v", found, err)
	}
}

func TestCreateItemValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture()

	bad := domain.GlassItem{Manufacturer: "cim", SKU: "550"}
	_, err := svc.CreateItem(ctx, bad)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(vErr.Result.Messages) == 0 {
		t.Fatalf("no messages on validation error")
	}

	outOfRange := scrapedItem("cim-550-0", "cim", "550", "Avocado")
	outOfRange.COE = 500
	if _, err := svc.CreateItem(ctx, outOfRange); !errors.As(err, &vErr) {
		t.Fatalf("coe out of range accepted: %v", err)
	}
}

func TestNoteLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture()

	note := domain.UserNote{ItemKey: "cim-550-0", Text: "  Strikes darker when reduced.  "}
	created, err := svc.CreateNote(ctx, note)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Text != "Strikes darker when reduced." {
		t.Fatalf("text not trimmed: %q", created.Text)
	}

	if _, err := svc.CreateNote(ctx, note); !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("duplicate create: %v", err)
	}

	if err := svc.UpdateNote(ctx, domain.UserNote{ItemKey: "missing-0", Text: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update absent: %v", err)
	}

	blank := domain.UserNote{ItemKey: "cim-550-0", Text: "   "}
	var vErr *ValidationError
	if _, err := svc.SetNote(ctx, blank); !errors.As(err, &vErr) {
		t.Fatalf("blank note accepted: %v", err)
	}

	if err := svc.DeleteNote(ctx, "cim-550-0"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := svc.GetNote(ctx, "cim-550-0"); found {
		t.Fatalf("note survived delete")
	}
}
