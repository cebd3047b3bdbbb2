package camelot

import "math"

// Band is a half-open tempo interval used to coarsely group tracks. Lower is
// the grouping key; Name and Label are for display only.
type Band struct {
	Lower int    `json:"lower"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// bands is ordered by upper bound. The final band has no upper bound.
// Tempos below 60 fall into the first band and share its lower bound of 60.
var bands = []struct {
	upper int
	band  Band
}{
	{80, Band{Lower: 60, Name: "Downtempo", Label: "Downtempo (60-79 BPM)"}},
	{100, Band{Lower: 80, Name: "Hip-Hop", Label: "Hip-Hop (80-99 BPM)"}},
	{120, Band{Lower: 100, Name: "House", Label: "House (100-119 BPM)"}},
	{140, Band{Lower: 120, Name: "Techno", Label: "Techno (120-139 BPM)"}},
	{160, Band{Lower: 140, Name: "Drum & Bass", Label: "Drum & Bass (140-159 BPM)"}},
	{180, Band{Lower: 160, Name: "Hardcore", Label: "Hardcore (160-179 BPM)"}},
	{math.MaxInt, Band{Lower: 180, Name: "Extreme", Label: "Extreme (180+ BPM)"}},
}

// RoundBPM rounds tempo to the nearest integer, halves rounding up. Values
// outside the int range saturate.
func RoundBPM(tempo float64) int {
	r := math.Floor(tempo + 0.5)
	switch {
	case r >= math.MaxInt:
		return math.MaxInt
	case r <= math.MinInt:
		return math.MinInt
	}
	return int(r)
}

// BandFor returns the band containing tempo after rounding. The comparison
// stays in float64 so very large tempos land in the last band.
func BandFor(tempo float64) Band {
	bpm := math.Floor(tempo + 0.5)
	for _, b := range bands[:len(bands)-1] {
		if bpm < float64(b.upper) {
			return b.band
		}
	}
	return bands[len(bands)-1].band
}

// BandLabel returns the display label for tempo. It is derived from the same
// table as BandFor so the two always agree.
func BandLabel(tempo float64) string {
	return BandFor(tempo).Label
}

// LabelForLower returns the display label of the band whose grouping key is
// lower, or an empty string if there is none.
func LabelForLower(lower int) string {
	for _, b := range bands {
		if b.band.Lower == lower {
			return b.band.Label
		}
	}
	return ""
}

// Bands returns a copy of the band table in ascending order.
func Bands() []Band {
	out := make([]Band, len(bands))
	for i, b := range bands {
		out[i] = b.band
	}
	return out
}
