package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
)

const seed = `destinations:
  - id: Lisbon
    name: Lisbon
    country: Portugal
    region: Southern Europe
    highlights: [Alfama, Belém]
  - id: porto
    name: Porto
    country: Portugal
`

func TestParse(t *testing.T) {
	ds, err := Parse(strings.NewReader(seed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ds) != 2 || ds[0].ID != "lisbon" || ds[0].Highlights != "Alfama\nBelém" {
		t.Fatalf("parsed = %+v", ds)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing name":  "destinations:\n  - id: a\n    country: X\n",
		"bad slug":      "destinations:\n  - id: not a slug\n    name: A\n    country: X\n",
		"duplicate id":  "destinations:\n  - {id: a, name: A, country: X}\n  - {id: A, name: B, country: Y}\n",
		"unknown field": "destinations:\n  - {id: a, name: A, country: X, price: 3}\n",
		"not yaml":      "destinations: [",
	}
	for name, in := range cases {
		if _, err := Parse(strings.NewReader(in)); !errors.Is(err, ErrInvalidCatalog) {
			t.Fatalf("%s: want ErrInvalidCatalog, got %v", name, err)
		}
	}
	if ds, err := Parse(strings.NewReader("")); err != nil || len(ds) != 0 {
		t.Fatalf("empty document: %v %v", ds, err)
	}
}

func TestSeed_UpsertsAndToleratesMissingFile(t *testing.T) {
	dir := t.TempDir()
	db, err := repo.OpenSQLite(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if n, err := Seed(ctx, db, filepath.Join(dir, "missing.yaml"), zerolog.Nop()); err != nil || n != 0 {
		t.Fatalf("missing file: n=%d err=%v", n, err)
	}

	path := filepath.Join(dir, "destinations.yaml")
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	if n, err := Seed(ctx, db, path, zerolog.Nop()); err != nil || n != 2 {
		t.Fatalf("seed: n=%d err=%v", n, err)
	}

	updated := strings.Replace(seed, "name: Porto", "name: Porto City", 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Seed(ctx, db, path, zerolog.Nop()); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	d, err := repo.GetDestination(ctx, db, "porto")
	if err != nil || d.Name != "Porto City" {
		t.Fatalf("upsert did not refresh: %+v %v", d, err)
	}
	all, _ := repo.ListDestinations(ctx, db)
	if len(all) != 2 {
		t.Fatalf("want 2 rows, got %d", len(all))
	}
}

func TestLoad_ShippedCatalog(t *testing.T) {
	ds, err := Load(filepath.Join("..", "..", "data", "destinations.yaml"))
	if err != nil {
		t.Fatalf("shipped catalog invalid: %v", err)
	}
	if len(ds) == 0 {
		t.Fatalf("shipped catalog is empty")
	}
}
