package lineitem

import (
	"context"
	"testing"

	"github.com/openlgu/badyet/internal/db"
	"github.com/openlgu/badyet/internal/jurisdiction"
	"github.com/openlgu/badyet/internal/scope"
)

func setupStores(t *testing.T) (*Store, *jurisdiction.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database), jurisdiction.NewStore(database)
}

func seedFixture(t *testing.T, store *Store, jstore *jurisdiction.Store) {
	t.Helper()
	ctx := context.Background()

	for _, j := range []jurisdiction.Jurisdiction{
		{ID: "b1", Name: "San Isidro", Type: jurisdiction.TypeBarangay, Published: true},
		{ID: "b2", Name: "Mabini", Type: jurisdiction.TypeBarangay, Published: true},
	} {
		if _, err := jstore.Upsert(ctx, j); err != nil {
			t.Fatalf("seed jurisdiction: %v", err)
		}
	}

	for _, li := range []LineItem{
		{ID: "li1", JurisdictionID: "b1", AIPRefCode: "3000-A", ProgramTitle: "Road concreting", FiscalYear: 2024, AmountTotal: 1_200_000, Published: true},
		{ID: "li2", JurisdictionID: "b1", AIPRefCode: "3000-B", ProgramTitle: "Drainage repair", FiscalYear: 2024, AmountTotal: 800_000, Published: true},
		{ID: "li3", JurisdictionID: "b2", AIPRefCode: "1000-A", ProgramTitle: "Health center upgrade", FiscalYear: 2024, AmountTotal: 500_000, Published: true},
		{ID: "li4", JurisdictionID: "b1", AIPRefCode: "3000-C", ProgramTitle: "Unpublished project", FiscalYear: 2024, AmountTotal: 999_999, Published: false},
		{ID: "li5", JurisdictionID: "b1", AIPRefCode: "3000-A", ProgramTitle: "Old road project", FiscalYear: 2023, AmountTotal: 700_000, Published: true},
	} {
		if _, err := store.Upsert(ctx, li); err != nil {
			t.Fatalf("seed line item %s: %v", li.AIPRefCode, err)
		}
	}
}

func TestGetByIDJoinsBarangayName(t *testing.T) {
	store, jstore := setupStores(t)
	seedFixture(t, store, jstore)

	li, err := store.GetByID(context.Background(), "li1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if li == nil {
		t.Fatal("expected line item")
	}
	if li.BarangayName != "San Isidro" {
		t.Errorf("expected joined barangay name, got %q", li.BarangayName)
	}

	missing, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}

func TestTotalInvestmentGlobal(t *testing.T) {
	store, jstore := setupStores(t)
	seedFixture(t, store, jstore)

	total, count, err := store.TotalInvestment(context.Background(), 2024, nil)
	if err != nil {
		t.Fatalf("TotalInvestment: %v", err)
	}
	// li1 + li2 + li3; unpublished li4 and FY2023 li5 excluded.
	if total != 2_500_000 {
		t.Errorf("expected 2500000, got %v", total)
	}
	if count != 3 {
		t.Errorf("expected 3 items, got %d", count)
	}
}

func TestTotalInvestmentScoped(t *testing.T) {
	store, jstore := setupStores(t)
	seedFixture(t, store, jstore)

	targets := []scope.Target{{Type: jurisdiction.TypeBarangay, ID: "b1", Name: "San Isidro"}}
	total, count, err := store.TotalInvestment(context.Background(), 2024, targets)
	if err != nil {
		t.Fatalf("TotalInvestment: %v", err)
	}
	if total != 2_000_000 || count != 2 {
		t.Errorf("expected 2000000 across 2 items, got %v across %d", total, count)
	}
}

func TestTotalInvestmentIdempotent(t *testing.T) {
	store, jstore := setupStores(t)
	seedFixture(t, store, jstore)

	a, _, err := store.TotalInvestment(context.Background(), 2024, nil)
	if err != nil {
		t.Fatalf("TotalInvestment: %v", err)
	}
	b, _, err := store.TotalInvestment(context.Background(), 2024, nil)
	if err != nil {
		t.Fatalf("TotalInvestment: %v", err)
	}
	if a != b {
		t.Errorf("totals differ between runs: %v vs %v", a, b)
	}
}

func TestCountByJurisdiction(t *testing.T) {
	store, jstore := setupStores(t)
	seedFixture(t, store, jstore)

	n, err := store.CountByJurisdiction(context.Background(), "b1")
	if err != nil {
		t.Fatalf("CountByJurisdiction: %v", err)
	}
	// li1, li2, li5 published; li4 not.
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

func TestListPublishedExcludesHiddenRows(t *testing.T) {
	store, jstore := setupStores(t)
	seedFixture(t, store, jstore)

	items, err := store.ListPublished(context.Background())
	if err != nil {
		t.Fatalf("ListPublished: %v", err)
	}
	// li1, li2, li3, li5 published; li4 excluded.
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	for _, li := range items {
		if li.ID == "li4" {
			t.Error("unpublished item listed")
		}
		if li.BarangayName == "" {
			t.Errorf("item %s missing joined barangay name", li.ID)
		}
	}
}

func TestUpsertReplacesOnConflict(t *testing.T) {
	store, jstore := setupStores(t)
	seedFixture(t, store, jstore)

	_, err := store.Upsert(context.Background(), LineItem{
		JurisdictionID: "b1", AIPRefCode: "3000-A", ProgramTitle: "Road concreting phase 2",
		FiscalYear: 2024, AmountTotal: 1_500_000, Published: true,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	li, err := store.GetByID(context.Background(), "li1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if li.ProgramTitle != "Road concreting phase 2" || li.AmountTotal != 1_500_000 {
		t.Errorf("conflict update not applied: %+v", li)
	}
}

func TestFormatPeso(t *testing.T) {
	got := FormatPeso(1_234_567.5)
	if got != "PHP 1,234,567.5" {
		t.Errorf("FormatPeso = %q", got)
	}
}
