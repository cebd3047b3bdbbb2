package analysis

import (
	"context"
	"hash/fnv"
	"math/rand/v2"

	"Camelot-Organizer-Go/pkg/music"
)

// Simulated fills in plausible analysis values without any provider: a
// tempo between 80 and 119 BPM, a random key and a random mode. Values are
// seeded from the track ID so the same track always gets the same result.
// It exists for demos and for accounts that cannot reach the audio-features
// endpoint.
type Simulated struct{}

// Analyze implements Analyzer.
func (Simulated) Analyze(ctx context.Context, tracks []music.Track) ([]music.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	feats := make(map[string]music.Features)
	for _, id := range pendingIDs(tracks) {
		feats[id] = Simulate(id)
	}
	return apply(tracks, feats), nil
}

// Simulate returns the simulated analysis for id.
func Simulate(id string) music.Features {
	h := fnv.New64a()
	h.Write([]byte(id))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return music.Features{
		ID:    id,
		Tempo: float64(80 + r.IntN(40)),
		Key:   r.IntN(12),
		Mode:  r.IntN(2),
	}
}
