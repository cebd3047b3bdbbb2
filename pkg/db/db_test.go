package db

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"Camelot-Organizer-Go/pkg/music"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// TestSaveAndGetAnalysis verifies that analysis values round trip and are
// kept apart per source.
func TestSaveAndGetAnalysis(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	if err := d.SaveAnalysis(ctx, "spotify", []music.Features{{ID: "a", Tempo: 121.5, Key: 9, Mode: 0}}); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetAnalysis(ctx, "spotify", []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["a"].Tempo != 121.5 || got["a"].Key != 9 || got["a"].Mode != 0 {
		t.Fatalf("unexpected analysis %+v", got)
	}
	other, err := d.GetAnalysis(ctx, "simulated", []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("sources must not mix: %+v", other)
	}
}

// TestSaveAnalysisOverwrites ensures re-analysis replaces the stored value.
func TestSaveAnalysisOverwrites(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	for _, tempo := range []float64{100, 128} {
		if err := d.SaveAnalysis(ctx, "spotify", []music.Features{{ID: "a", Tempo: tempo, Key: 1, Mode: 1}}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := d.GetAnalysis(ctx, "spotify", []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if got["a"].Tempo != 128 {
		t.Errorf("expected overwritten tempo, got %v", got["a"].Tempo)
	}
}

func TestGetAnalysisManyIDs(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	var feats []music.Features
	var ids []string
	for i := 0; i < 1200; i++ {
		id := "t" + strconv.Itoa(i)
		ids = append(ids, id)
		feats = append(feats, music.Features{ID: id, Tempo: 90, Key: 2, Mode: 1})
	}
	if err := d.SaveAnalysis(ctx, "spotify", feats); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetAnalysis(ctx, "spotify", ids)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1200 {
		t.Errorf("expected 1200 cached entries, got %d", len(got))
	}
	empty, err := d.GetAnalysis(ctx, "spotify", nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty result for no ids: %v %v", empty, err)
	}
}

// TestAddAndListExports verifies exports are listed newest first per user.
func TestAddAndListExports(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first, err := d.AddExport(ctx, Export{UserID: "u", PlaylistID: "p1", Name: "Mix - Organized", TrackCount: 10, GroupCount: 3, CreatedAt: base})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == "" {
		t.Fatal("expected generated id")
	}
	if _, err := d.AddExport(ctx, Export{UserID: "u", PlaylistID: "p2", Name: "Second", CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AddExport(ctx, Export{UserID: "other", PlaylistID: "p3", Name: "Other"}); err != nil {
		t.Fatal(err)
	}
	got, err := d.ListExports(ctx, "u", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].PlaylistID != "p2" || got[1].ID != first.ID {
		t.Fatalf("unexpected exports %+v", got)
	}
	if got[1].TrackCount != 10 || got[1].GroupCount != 3 || !got[1].CreatedAt.Equal(base) {
		t.Errorf("fields not preserved: %+v", got[1])
	}
	limited, err := d.ListExports(ctx, "u", 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("expected one export with limit: %v %v", limited, err)
	}
}

// TestNewOnDisk ensures the schema is created in a file database and can be
// reopened.
func TestNewOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camelot.db")
	d, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	d.Close()
	d, err = New(path)
	if err != nil {
		t.Fatal(err)
	}
	d.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
}
