package analysis

import (
	"context"
	"fmt"

	"Camelot-Organizer-Go/pkg/music"
)

// Features annotates tracks using a provider's audio-features lookup.
type Features struct {
	Source FeatureSource
}

// Analyze implements Analyzer.
func (f Features) Analyze(ctx context.Context, tracks []music.Track) ([]music.Track, error) {
	ids := pendingIDs(tracks)
	if len(ids) == 0 {
		return apply(tracks, nil), nil
	}
	feats, err := f.Source.AudioFeatures(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("audio features: %w", err)
	}
	return apply(tracks, byID(feats)), nil
}
