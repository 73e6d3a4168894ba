// Package similarity scores the perceptual similarity of two feature sets.
package similarity

import (
	"encoding/binary"
	"math/bits"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module/features"
)

// MaxMatchDistance is the exclusive Hamming distance bound below which a
// mutual nearest neighbour pair counts as a good match.
const MaxMatchDistance = 50

// Hamming returns the number of differing bits of two descriptors.
func Hamming(a, b *provenance.Descriptor) int {
	d := 0
	for i := 0; i < provenance.DescriptorSize; i += 8 {
		d += bits.OnesCount64(binary.LittleEndian.Uint64(a[i:]) ^ binary.LittleEndian.Uint64(b[i:]))
	}
	return d
}

// Score returns the similarity of two feature sets in [0, 1]: the number of
// good cross-checked matches divided by the size of the smaller set. A nil
// or empty set scores 0.
//
// Each descriptor is matched to its nearest neighbour in the other set, and
// only pairs that are each other's nearest neighbour are kept. Equal
// distances resolve to the lowest index, so the result is deterministic and
// symmetric in its arguments.
func Score(a, b *provenance.FeatureSet) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}

	forward := nearestNeighbours(a.Descriptors, b.Descriptors)
	backward := nearestNeighbours(b.Descriptors, a.Descriptors)

	good := 0
	for i, m := range forward {
		if m.distance < MaxMatchDistance && backward[m.index].index == i {
			good++
		}
	}

	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	score := float64(good) / float64(n)
	if score > 1 {
		score = 1
	}
	return score
}

// ScoreRaw parses both serialized sets and scores them. Any parse failure
// yields 0.
func ScoreRaw(a, b *provenance.RawFeatureSet) float64 {
	fa, err := features.Parse(a)
	if err != nil {
		return 0
	}
	fb, err := features.Parse(b)
	if err != nil {
		return 0
	}
	return Score(fa, fb)
}

// ScoreJSON scores two JSON serialized sets. Any parse failure yields 0.
func ScoreJSON(a, b []byte) float64 {
	fa, err := features.ParseJSON(a)
	if err != nil {
		return 0
	}
	fb, err := features.ParseJSON(b)
	if err != nil {
		return 0
	}
	return Score(fa, fb)
}

type match struct {
	index    int
	distance int
}

func nearestNeighbours(query, train []provenance.Descriptor) []match {
	matches := make([]match, len(query))
	for i := range query {
		best := match{index: -1, distance: provenance.DescriptorSize*8 + 1}
		for j := range train {
			if d := Hamming(&query[i], &train[j]); d < best.distance {
				best = match{index: j, distance: d}
			}
		}
		matches[i] = best
	}
	return matches
}
