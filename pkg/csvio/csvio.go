// Package csvio reads and writes track lists as CSV for the offline
// organizer. Rows have the columns id, uri, name, artist, tempo, key and mode;
// a blank tempo, key or mode cell means the value is unknown. Files written
// by Save add band and camelot columns and can be loaded again.
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"Camelot-Organizer-Go/pkg/music"
	"Camelot-Organizer-Go/pkg/organizer"
)

const minColumns = 7

// Header is the column layout written by Save.
var Header = []string{"id", "uri", "name", "artist", "tempo", "key", "mode", "band", "camelot"}

// Load reads tracks from a CSV file on disk.
func Load(ctx context.Context, path string) ([]music.Track, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return Read(ctx, file)
}

// Read parses tracks from r. A first row whose id cell is "id" is treated as
// a header.
func Read(ctx context.Context, r io.Reader) ([]music.Track, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var tracks []music.Track
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < minColumns {
			return nil, fmt.Errorf("line %d: expected %d columns but got %d", line, minColumns, len(record))
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "id") {
			continue
		}
		t, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func parseRecord(record []string) (music.Track, error) {
	t := music.Track{
		ID:   strings.TrimSpace(record[0]),
		URI:  strings.TrimSpace(record[1]),
		Name: strings.TrimSpace(record[2]),
	}
	if artist := strings.TrimSpace(record[3]); artist != "" {
		t.Artists = []music.Artist{{Name: artist}}
	}
	if t.URI == "" && t.ID != "" {
		t.URI = "spotify:track:" + t.ID
	}

	if v := strings.TrimSpace(record[4]); v != "" {
		tempo, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return music.Track{}, fmt.Errorf("invalid tempo: %w", err)
		}
		t.Tempo = &tempo
	}
	if v := strings.TrimSpace(record[5]); v != "" {
		key, err := strconv.Atoi(v)
		if err != nil {
			return music.Track{}, fmt.Errorf("invalid key: %w", err)
		}
		t.Key = &key
	}
	if v := strings.TrimSpace(record[6]); v != "" {
		mode, err := strconv.Atoi(v)
		if err != nil {
			return music.Track{}, fmt.Errorf("invalid mode: %w", err)
		}
		t.Mode = &mode
	}
	return t, nil
}

// Save writes groups to disk in export order, creating directories as
// needed.
func Save(ctx context.Context, path string, groups []organizer.Group) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := Write(ctx, file, groups); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Write encodes groups to w in export order.
func Write(ctx context.Context, w io.Writer, groups []organizer.Group) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, t := range g.Tracks {
			row := []string{
				t.ID,
				t.URI,
				t.Name,
				t.ArtistNames(),
				strconv.FormatFloat(*t.Tempo, 'f', -1, 64),
				strconv.Itoa(*t.Key),
				strconv.Itoa(*t.Mode),
				g.Label(),
				string(g.Camelot),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
