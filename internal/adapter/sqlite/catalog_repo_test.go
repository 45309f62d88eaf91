package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/vertextoedge/media-frame-cache/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog", "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCatalogRepo_UpsertAndGet(t *testing.T) {
	repo := openTestStore(t).Catalog()

	entry := &domain.CatalogEntry{
		Pattern:   "/plates/shot.####.exr",
		Directory: "/plates",
		Kind:      "sequence",
		Extension: "exr",
		Padding:   4,
		Start:     1001,
		End:       1010,
		Frames:    9,
		Missing:   1,
	}
	if err := repo.Upsert(entry); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if entry.ID == "" {
		t.Fatal("Upsert() did not assign an ID")
	}

	got, err := repo.Get(entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil")
	}
	if got.Pattern != entry.Pattern || got.Start != 1001 || got.End != 1010 || got.Missing != 1 {
		t.Errorf("Get() = %+v", got)
	}
	if got.Complete() || got.Span() != 10 {
		t.Errorf("Complete() = %v, Span() = %d", got.Complete(), got.Span())
	}

	// Re-scan with the gap filled keeps the ID.
	rescan := &domain.CatalogEntry{
		Pattern:   entry.Pattern,
		Directory: "/plates",
		Kind:      "sequence",
		Extension: "exr",
		Padding:   4,
		Start:     1001,
		End:       1010,
		Frames:    10,
	}
	if err := repo.Upsert(rescan); err != nil {
		t.Fatalf("Upsert() rescan error = %v", err)
	}
	if rescan.ID != entry.ID {
		t.Errorf("rescan ID = %s, want %s", rescan.ID, entry.ID)
	}

	byPattern, err := repo.GetByPattern(entry.Pattern)
	if err != nil {
		t.Fatalf("GetByPattern() error = %v", err)
	}
	if byPattern.Frames != 10 || !byPattern.Complete() {
		t.Errorf("GetByPattern() = %+v", byPattern)
	}

	n, err := repo.Count()
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v; want 1", n, err)
	}
}

func TestCatalogRepo_GetMissing(t *testing.T) {
	repo := openTestStore(t).Catalog()

	got, err := repo.Get("does-not-exist")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil", got)
	}
}

func TestCatalogRepo_ListAndDelete(t *testing.T) {
	repo := openTestStore(t).Catalog()

	for _, e := range []*domain.CatalogEntry{
		{Pattern: "/b/plate.mov", Directory: "/b", Kind: "movie", Extension: "mov", Frames: 48, End: 47},
		{Pattern: "/a/shot.####.exr", Directory: "/a", Kind: "sequence", Extension: "exr", Frames: 3, Start: 1, End: 3},
		{Pattern: "/a/still.png", Directory: "/a", Kind: "single", Extension: "png", Frames: 1},
	} {
		if err := repo.Upsert(e); err != nil {
			t.Fatalf("Upsert(%s) error = %v", e.Pattern, err)
		}
	}

	all, err := repo.List("", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].Pattern != "/a/shot.####.exr" {
		t.Errorf("List() order = %v", patterns(all))
	}

	movies, err := repo.List("movie", 0)
	if err != nil || len(movies) != 1 || movies[0].Frames != 48 {
		t.Errorf("List(movie) = %v, %v", patterns(movies), err)
	}

	limited, err := repo.List("", 2)
	if err != nil || len(limited) != 2 {
		t.Errorf("List(limit 2) = %v, %v", patterns(limited), err)
	}

	if err := repo.Delete(all[0].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n, _ := repo.Count(); n != 2 {
		t.Errorf("Count() after delete = %d, want 2", n)
	}
}

func TestCatalogEntry_IsStale(t *testing.T) {
	now := time.Now()
	e := &domain.CatalogEntry{ScannedAt: now.Add(-2 * time.Hour)}
	if !e.IsStale(now.Add(-time.Hour)) {
		t.Error("IsStale() = false for entry scanned before cutoff")
	}
	if e.IsStale(now.Add(-3 * time.Hour)) {
		t.Error("IsStale() = true for entry scanned after cutoff")
	}
}

func patterns(entries []*domain.CatalogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Pattern)
	}
	return out
}
