package analysis

import (
	"context"

	log "github.com/sirupsen/logrus"

	"Camelot-Organizer-Go/pkg/metrics"
	"Camelot-Organizer-Go/pkg/music"
)

// Store persists analysis results keyed by source and track ID.
type Store interface {
	GetAnalysis(ctx context.Context, source string, ids []string) (map[string]music.Features, error)
	SaveAnalysis(ctx context.Context, source string, feats []music.Features) error
}

// Cached is a read-through cache in front of Next. Results are stored under
// Source so values from different analyzers never mix.
type Cached struct {
	Store  Store
	Source string
	Next   Analyzer
}

// Analyze implements Analyzer. Cache failures are logged and treated as
// misses; they never fail the request.
func (c Cached) Analyze(ctx context.Context, tracks []music.Track) ([]music.Track, error) {
	ids := pendingIDs(tracks)
	if len(ids) == 0 {
		return apply(tracks, nil), nil
	}
	hits, err := c.Store.GetAnalysis(ctx, c.Source, ids)
	if err != nil {
		log.WithError(err).WithField("source", c.Source).Warn("analysis cache read failed")
		hits = nil
	}
	metrics.AnalysisCache.WithLabelValues("hit").Add(float64(len(hits)))
	metrics.AnalysisCache.WithLabelValues("miss").Add(float64(len(ids) - len(hits)))

	out := apply(tracks, hits)
	if len(hits) == len(ids) {
		return out, nil
	}

	var pending []music.Track
	var idx []int
	for i, t := range out {
		if !t.Analyzed() {
			idx = append(idx, i)
			pending = append(pending, t)
		}
	}
	done, err := c.Next.Analyze(ctx, pending)
	if err != nil {
		return nil, err
	}
	var fresh []music.Features
	seen := make(map[string]bool)
	for j, i := range idx {
		t := done[j]
		out[i] = t
		if t.Analyzed() && !seen[t.ID] {
			seen[t.ID] = true
			fresh = append(fresh, music.Features{ID: t.ID, Tempo: *t.Tempo, Key: *t.Key, Mode: *t.Mode})
		}
	}
	if len(fresh) > 0 {
		if err := c.Store.SaveAnalysis(ctx, c.Source, fresh); err != nil {
			log.WithError(err).WithField("source", c.Source).Warn("analysis cache write failed")
		}
	}
	return out, nil
}
