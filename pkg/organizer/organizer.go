// Package organizer reorders a playlist for DJ mixing. Tracks are grouped
// into BPM bands, each band is split by Camelot code and the groups are
// returned in a deterministic order. The package performs no I/O and holds no
// state, so Organize may be called concurrently.
package organizer

import (
	"math"
	"sort"

	"Camelot-Organizer-Go/pkg/camelot"
	"Camelot-Organizer-Go/pkg/music"
)

// Group is one (band, code) bucket of the organized playlist. Tracks are in
// ascending tempo order.
type Group struct {
	BPM     int           `json:"bpm"`
	Camelot camelot.Code  `json:"camelot"`
	Tracks  []music.Track `json:"tracks"`
}

// Label returns the display label of the group's BPM band.
func (g Group) Label() string {
	return camelot.LabelForLower(g.BPM)
}

type groupKey struct {
	lower int
	code  camelot.Code
}

// Valid reports whether t can be organized: tempo, key and mode must be
// present, the tempo finite and non-negative, and key/mode within range.
func Valid(t music.Track) bool {
	if !t.Analyzed() {
		return false
	}
	if math.IsNaN(*t.Tempo) || math.IsInf(*t.Tempo, 0) || *t.Tempo < 0 {
		return false
	}
	_, ok := camelot.KeyName(*t.Key, *t.Mode)
	return ok
}

// Organize groups tracks by BPM band and Camelot code. Tracks that are not
// Valid are dropped. Groups are ordered by band lower bound and then by code
// using plain string comparison, so "10A" sorts before "2A". Tracks within a
// group keep their input order when tempos are equal. The result is never nil.
func Organize(tracks []music.Track) []Group {
	buckets := make(map[groupKey][]music.Track)
	var order []groupKey
	for _, t := range tracks {
		if !Valid(t) {
			continue
		}
		k := groupKey{
			lower: camelot.BandFor(*t.Tempo).Lower,
			code:  camelot.Classify(*t.Key, *t.Mode),
		}
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], t)
	}

	groups := make([]Group, 0, len(order))
	for _, k := range order {
		ts := buckets[k]
		sort.SliceStable(ts, func(i, j int) bool { return *ts[i].Tempo < *ts[j].Tempo })
		groups = append(groups, Group{BPM: k.lower, Camelot: k.code, Tracks: ts})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].BPM != groups[j].BPM {
			return groups[i].BPM < groups[j].BPM
		}
		return groups[i].Camelot < groups[j].Camelot
	})
	return groups
}

// URIs flattens groups into the order the tracks should be written to a new
// playlist.
func URIs(groups []Group) []string {
	var uris []string
	for _, g := range groups {
		for _, t := range g.Tracks {
			uris = append(uris, t.URI)
		}
	}
	return uris
}

// Summary counts what happened to an input collection.
type Summary struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Excluded int `json:"excluded"`
	Groups   int `json:"groups"`
}

// Summarize describes the result of organizing input into groups.
func Summarize(input []music.Track, groups []Group) Summary {
	s := Summary{Total: len(input), Groups: len(groups)}
	for _, g := range groups {
		s.Valid += len(g.Tracks)
	}
	s.Excluded = s.Total - s.Valid
	return s
}
