// Package analysis annotates tracks with tempo, key and mode. The organizer
// never guesses these values itself; it only groups what an Analyzer
// returned. Analyzers leave a track untouched when they have nothing to say
// about it so later analyzers in a Chain can try again.
package analysis

import (
	"context"

	log "github.com/sirupsen/logrus"

	"Camelot-Organizer-Go/pkg/music"
)

// Analyzer returns copies of tracks annotated with whatever analysis it can
// supply. The result has the same length and order as the input.
type Analyzer interface {
	Analyze(ctx context.Context, tracks []music.Track) ([]music.Track, error)
}

// FeatureSource looks up analysis values for track IDs. Unknown IDs are
// omitted from the result.
type FeatureSource interface {
	AudioFeatures(ctx context.Context, ids []string) ([]music.Features, error)
}

// Chain runs analyzers in order. Each one only sees tracks that are still
// missing analysis after the previous ones. An error from any analyzer but
// the last is logged and the next one gets the same tracks.
type Chain []Analyzer

// Analyze implements Analyzer.
func (c Chain) Analyze(ctx context.Context, tracks []music.Track) ([]music.Track, error) {
	out := append([]music.Track(nil), tracks...)
	for n, a := range c {
		var idx []int
		var pending []music.Track
		for i, t := range out {
			if !t.Analyzed() {
				idx = append(idx, i)
				pending = append(pending, t)
			}
		}
		if len(pending) == 0 {
			break
		}
		done, err := a.Analyze(ctx, pending)
		if err != nil {
			if n == len(c)-1 || ctx.Err() != nil {
				return nil, err
			}
			log.WithError(err).WithField("pending", len(pending)).Warn("analyzer failed, trying next")
			continue
		}
		for j, i := range idx {
			out[i] = done[j]
		}
	}
	return out, nil
}

// apply copies features onto the matching tracks. Tracks that already carry
// analysis keep it.
func apply(tracks []music.Track, feats map[string]music.Features) []music.Track {
	out := make([]music.Track, len(tracks))
	for i, t := range tracks {
		out[i] = t
		if t.Analyzed() {
			continue
		}
		if f, ok := feats[t.ID]; ok {
			out[i] = t.WithAnalysis(f.Tempo, f.Key, f.Mode)
		}
	}
	return out
}

// pendingIDs returns the distinct IDs of tracks still lacking analysis.
func pendingIDs(tracks []music.Track) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, t := range tracks {
		if t.Analyzed() || t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		ids = append(ids, t.ID)
	}
	return ids
}

func byID(feats []music.Features) map[string]music.Features {
	m := make(map[string]music.Features, len(feats))
	for _, f := range feats {
		m[f.ID] = f
	}
	return m
}
