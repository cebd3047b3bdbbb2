// Package export writes an organized track order back to the provider as a
// new playlist and records the result.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"Camelot-Organizer-Go/pkg/db"
	"Camelot-Organizer-Go/pkg/metrics"
	"Camelot-Organizer-Go/pkg/music"
	"Camelot-Organizer-Go/pkg/organizer"
)

const (
	// BatchSize is the maximum number of URIs appended per provider call.
	BatchSize = 100

	// Description is attached to every exported playlist.
	Description = "Playlist reorganized by BPM (primary) and Camelot number (secondary) for DJ mixing"

	nameSuffix = " - Organized"
	maxNameLen = 100
)

var (
	// ErrNoTracks is returned when the groups contain nothing to export.
	ErrNoTracks = errors.New("no tracks to export")
	// ErrNotCreated is returned when the new playlist cannot be read back.
	ErrNotCreated = errors.New("playlist not found after creation")
)

// Recorder stores completed exports.
type Recorder interface {
	AddExport(ctx context.Context, e db.Export) (db.Export, error)
}

// Exporter writes organized groups to a Library.
type Exporter struct {
	Library  music.Library
	Recorder Recorder
}

// Request describes one export.
type Request struct {
	UserID           string
	SourcePlaylistID string
	SourceName       string
	// Name overrides the default "<source> - Organized" title.
	Name   string
	Groups []organizer.Group
}

// Result reports the created playlist.
type Result struct {
	PlaylistID string `json:"playlist_id"`
	Name       string `json:"name"`
	TrackCount int    `json:"track_count"`
	Batches    int    `json:"batches"`
}

// PlaylistName returns the title used for an export of sourceName.
func PlaylistName(sourceName, override string) string {
	name := strings.TrimSpace(override)
	if name == "" {
		src := strings.TrimSpace(sourceName)
		if src == "" {
			src = "Playlist"
		}
		name = src + nameSuffix
	}
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen])
	}
	return name
}

// Export creates the playlist, confirms it exists, appends the URIs in
// order in batches of BatchSize and confirms it again. Failures are wrapped
// with the step that failed. A failed recording is logged but does not fail
// the export because the playlist already exists.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	uris := organizer.URIs(req.Groups)
	if len(uris) == 0 {
		return Result{}, ErrNoTracks
	}
	name := PlaylistName(req.SourceName, req.Name)
	logger := log.WithFields(log.Fields{"user": req.UserID, "source": req.SourcePlaylistID})

	id, err := e.Library.CreatePlaylist(ctx, req.UserID, name, Description)
	if err != nil {
		return Result{}, fmt.Errorf("create playlist: %w", err)
	}
	if err := e.verify(ctx, id); err != nil {
		return Result{}, fmt.Errorf("verify new playlist: %w", err)
	}

	res := Result{PlaylistID: id, Name: name, TrackCount: len(uris)}
	for start := 0; start < len(uris); start += BatchSize {
		end := min(start+BatchSize, len(uris))
		if err := e.Library.AddTracks(ctx, id, uris[start:end]); err != nil {
			metrics.ExportBatches.WithLabelValues("error").Inc()
			return Result{}, fmt.Errorf("add tracks %d-%d of %d: %w", start+1, end, len(uris), err)
		}
		metrics.ExportBatches.WithLabelValues("ok").Inc()
		res.Batches++
	}
	if err := e.verify(ctx, id); err != nil {
		return Result{}, fmt.Errorf("verify playlist after adding tracks: %w", err)
	}

	if e.Recorder != nil {
		_, err := e.Recorder.AddExport(ctx, db.Export{
			UserID:           req.UserID,
			SourcePlaylistID: req.SourcePlaylistID,
			PlaylistID:       id,
			Name:             name,
			TrackCount:       len(uris),
			GroupCount:       len(req.Groups),
		})
		if err != nil {
			logger.WithError(err).Warn("record export")
		}
	}
	logger.WithFields(log.Fields{"playlist": id, "tracks": len(uris), "batches": res.Batches}).Info("playlist exported")
	return res, nil
}

func (e *Exporter) verify(ctx context.Context, id string) error {
	ok, err := e.Library.PlaylistExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCreated
	}
	return nil
}
