package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"Camelot-Organizer-Go/pkg/camelot"
	"Camelot-Organizer-Go/pkg/db"
	"Camelot-Organizer-Go/pkg/music"
	"Camelot-Organizer-Go/pkg/organizer"
)

type fakeLibrary struct {
	music.Library
	created     []string
	description string
	batches     [][]string
	addErrAt    int
	missing     bool
	existsCalls int
}

func (f *fakeLibrary) CreatePlaylist(ctx context.Context, owner, name, description string) (string, error) {
	f.created = append(f.created, owner+"/"+name)
	f.description = description
	return "new-id", nil
}

func (f *fakeLibrary) AddTracks(ctx context.Context, id string, uris []string) error {
	if f.addErrAt > 0 && len(f.batches)+1 == f.addErrAt {
		return errors.New("rate limited")
	}
	f.batches = append(f.batches, append([]string(nil), uris...))
	return nil
}

func (f *fakeLibrary) PlaylistExists(ctx context.Context, id string) (bool, error) {
	f.existsCalls++
	return !f.missing, nil
}

type fakeRecorder struct {
	got []db.Export
	err error
}

func (f *fakeRecorder) AddExport(ctx context.Context, e db.Export) (db.Export, error) {
	f.got = append(f.got, e)
	return e, f.err
}

func groupsOf(n int) []organizer.Group {
	var tracks []music.Track
	for i := 0; i < n; i++ {
		tracks = append(tracks, music.Track{URI: fmt.Sprintf("spotify:track:%03d", i)})
	}
	return []organizer.Group{{BPM: 100, Camelot: camelot.Code("8B"), Tracks: tracks}}
}

func TestExportBatchesInOrder(t *testing.T) {
	lib := &fakeLibrary{}
	rec := &fakeRecorder{}
	e := &Exporter{Library: lib, Recorder: rec}
	res, err := e.Export(context.Background(), Request{UserID: "u", SourcePlaylistID: "src", SourceName: "Friday", Groups: groupsOf(250)})
	if err != nil {
		t.Fatal(err)
	}
	if len(lib.batches) != 3 || len(lib.batches[0]) != 100 || len(lib.batches[1]) != 100 || len(lib.batches[2]) != 50 {
		t.Fatalf("unexpected batch sizes %d", len(lib.batches))
	}
	if lib.batches[1][0] != "spotify:track:100" || lib.batches[2][49] != "spotify:track:249" {
		t.Errorf("batches out of order")
	}
	if res.PlaylistID != "new-id" || res.TrackCount != 250 || res.Batches != 3 || res.Name != "Friday - Organized" {
		t.Errorf("unexpected result %+v", res)
	}
	if lib.created[0] != "u/Friday - Organized" || lib.description != Description {
		t.Errorf("unexpected create call %v %q", lib.created, lib.description)
	}
	if lib.existsCalls != 2 {
		t.Errorf("expected two verifications, got %d", lib.existsCalls)
	}
	if len(rec.got) != 1 || rec.got[0].TrackCount != 250 || rec.got[0].GroupCount != 1 || rec.got[0].SourcePlaylistID != "src" {
		t.Errorf("unexpected record %+v", rec.got)
	}
}

func TestExportEmpty(t *testing.T) {
	lib := &fakeLibrary{}
	_, err := (&Exporter{Library: lib}).Export(context.Background(), Request{UserID: "u"})
	if !errors.Is(err, ErrNoTracks) {
		t.Fatalf("expected ErrNoTracks, got %v", err)
	}
	if len(lib.created) != 0 {
		t.Error("no playlist should be created")
	}
}

func TestExportBatchFailure(t *testing.T) {
	lib := &fakeLibrary{addErrAt: 2}
	_, err := (&Exporter{Library: lib}).Export(context.Background(), Request{UserID: "u", Groups: groupsOf(150)})
	if err == nil || !strings.Contains(err.Error(), "add tracks 101-150 of 150") {
		t.Fatalf("expected batch error, got %v", err)
	}
}

func TestExportMissingPlaylist(t *testing.T) {
	lib := &fakeLibrary{missing: true}
	_, err := (&Exporter{Library: lib}).Export(context.Background(), Request{UserID: "u", Groups: groupsOf(1)})
	if !errors.Is(err, ErrNotCreated) {
		t.Fatalf("expected ErrNotCreated, got %v", err)
	}
	if len(lib.batches) != 0 {
		t.Error("tracks must not be added to a missing playlist")
	}
}

func TestExportRecorderFailureIgnored(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	if _, err := (&Exporter{Library: &fakeLibrary{}, Recorder: rec}).Export(context.Background(), Request{UserID: "u", Groups: groupsOf(1)}); err != nil {
		t.Fatalf("recording failure must not fail export: %v", err)
	}
}

func TestPlaylistName(t *testing.T) {
	cases := []struct{ src, override, want string }{
		{"Gym", "", "Gym - Organized"},
		{"", "", "Playlist - Organized"},
		{"Gym", "  Custom  ", "Custom"},
	}
	for _, c := range cases {
		if got := PlaylistName(c.src, c.override); got != c.want {
			t.Errorf("PlaylistName(%q, %q) = %q, want %q", c.src, c.override, got, c.want)
		}
	}
	if got := PlaylistName(strings.Repeat("x", 200), ""); len([]rune(got)) != 100 {
		t.Errorf("expected truncated name, got %d runes", len([]rune(got)))
	}
}
