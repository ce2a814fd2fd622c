package pipeline

import "math"

// fadeApplyChunkFades applies the equal-power fade_out over the chunk's
// last second and fade_in over its first second (spec §4.4, Open Question
// resolved in favor of equal-power over linear). Chunk 0 has no fade_in;
// the last chunk has no fade_out.
func fadeApplyChunkFades(pcm []float32, sr int, isFirst, isLast bool) {
	fadeFrames := crossfadeOverlapS * sr
	frames := len(pcm) / 2
	if fadeFrames > frames {
		fadeFrames = frames
	}

	if !isFirst {
		for i := 0; i < fadeFrames; i++ {
			t := float64(i) / float64(fadeFrames)
			gain := math.Sin(t * math.Pi / 2) // fade-in: 0 -> 1
			pcm[2*i] *= float32(gain)
			pcm[2*i+1] *= float32(gain)
		}
	}

	if !isLast {
		start := frames - fadeFrames
		for i := 0; i < fadeFrames; i++ {
			t := float64(i) / float64(fadeFrames)
			gain := math.Cos(t * math.Pi / 2) // fade-out: 1 -> 0
			idx := start + i
			pcm[2*idx] *= float32(gain)
			pcm[2*idx+1] *= float32(gain)
		}
	}
}

// Stitch sums chunk a's fade_out tail with chunk b's fade_in head, the
// crossfade step the player performs when concatenating consecutive
// chunks (spec §4.4: "these two regions are summed by the player when
// concatenating"). Both chunks must already have had their fades applied
// via fadeApplyChunkFades. The returned slice is the full concatenation:
// a's non-overlapping prefix, the summed overlap, b's non-overlapping
// suffix.
func Stitch(a, b []float32, sr int) []float32 {
	fadeFrames := crossfadeOverlapS * sr
	aFrames := len(a) / 2
	bFrames := len(b) / 2

	if fadeFrames > aFrames {
		fadeFrames = aFrames
	}
	if fadeFrames > bFrames {
		fadeFrames = bFrames
	}

	prefixFrames := aFrames - fadeFrames
	out := make([]float32, 0, len(a)+len(b)-fadeFrames*2)
	out = append(out, a[:prefixFrames*2]...)

	for i := 0; i < fadeFrames; i++ {
		aIdx := (prefixFrames + i) * 2
		bIdx := i * 2
		out = append(out, a[aIdx]+b[bIdx], a[aIdx+1]+b[bIdx+1])
	}

	out = append(out, b[fadeFrames*2:]...)
	return out
}
