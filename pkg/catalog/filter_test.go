package catalog

import (
	"testing"

	"molten/pkg/domain"
)

func filterFixture() []domain.GlassItem {
	return []domain.GlassItem{
		{
			NaturalKey:   "cim-550-0",
			Name:         "Avocado",
			Manufacturer: "cim",
			SKU:          "550",
			COE:          104,
			Tags:         []string{"green", "opaque"},
			Synonyms:     []string{"Guacamole"},
		},
		{
			NaturalKey:   "cim-551-0",
			Name:         "Salsa Verde",
			Manufacturer: "cim",
			SKU:          "551",
			COE:          104,
			Tags:         []string{"green", "transparent"},
		},
		{
			NaturalKey:   "bb-001-0",
			Name:         "Lagoon",
			Manufacturer: "bb",
			SKU:          "001",
			COE:          33,
			Tags:         []string{"blue", "opaque"},
		},
	}
}

func TestApplyEmptyConstraintsIsPassthrough(t *testing.T) {
	items := filterFixture()
	got := Apply(items, Constraints{})
	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}
	for i := range got {
		if got[i].NaturalKey != items[i].NaturalKey {
			t.Fatalf("order changed at %d: %q vs %q", i, got[i].NaturalKey, items[i].NaturalKey)
		}
	}
	// Result must be a fresh slice, not an alias of the input.
	got[0].Name = "mutated"
	if items[0].Name == "mutated" {
		t.Fatalf("filter result aliases the input slice")
	}
}

func TestFilterByCOE(t *testing.T) {
	got := FilterByCOE(filterFixture(), []int{33})
	if len(got) != 1 || got[0].NaturalKey != "bb-001-0" {
		t.Fatalf("coe filter got %+v", got)
	}
}

func TestFilterByManufacturersCaseInsensitive(t *testing.T) {
	got := FilterByManufacturers(filterFixture(), []string{" CIM "})
	if len(got) != 2 {
		t.Fatalf("manufacturer filter got %d items, want 2", len(got))
	}
}

func TestFilterByTagsRequiresAll(t *testing.T) {
	got := FilterByTags(filterFixture(), []string{"green", "opaque"})
	if len(got) != 1 || got[0].NaturalKey != "cim-550-0" {
		t.Fatalf("tag filter got %+v", got)
	}

	// Filtering by [a, b] must equal filtering by [a] then [b].
	chained := FilterByTags(FilterByTags(filterFixture(), []string{"green"}), []string{"opaque"})
	if len(chained) != len(got) || chained[0].NaturalKey != got[0].NaturalKey {
		t.Fatalf("chained tag filter diverged: %+v vs %+v", chained, got)
	}
}

func TestFilterIdempotent(t *testing.T) {
	once := FilterByTags(filterFixture(), []string{"green"})
	twice := FilterByTags(once, []string{"green"})
	if len(once) != len(twice) {
		t.Fatalf("second application changed the result: %d vs %d", len(once), len(twice))
	}
}

func TestSearchTextFields(t *testing.T) {
	items := filterFixture()

	cases := []struct {
		query string
		want  string
	}{
		{"  AVOCADO ", "cim-550-0"},
		{"guacamole", "cim-550-0"},
		{"lagoon", "bb-001-0"},
		{"bb-001", "bb-001-0"},
		{"transparent", "cim-551-0"},
	}
	for _, tc := range cases {
		got := SearchText(items, tc.query)
		if len(got) != 1 || got[0].NaturalKey != tc.want {
			t.Fatalf("query %q got %+v, want %s", tc.query, got, tc.want)
		}
	}

	if got := SearchText(items, "   "); len(got) != len(items) {
		t.Fatalf("blank query filtered items: %d", len(got))
	}
	if got := SearchText(items, "no-such-glass"); len(got) != 0 {
		t.Fatalf("miss returned %d items", len(got))
	}
}

func TestApplyChainsStages(t *testing.T) {
	got := Apply(filterFixture(), Constraints{
		COEs:          []int{104},
		Manufacturers: []string{"cim"},
		Tags:          []string{"green"},
		Query:         "salsa",
	})
	if len(got) != 1 || got[0].NaturalKey != "cim-551-0" {
		t.Fatalf("chained filter got %+v", got)
	}
}
