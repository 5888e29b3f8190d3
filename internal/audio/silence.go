package audio

import (
	"math"
	"time"
)

// SplitConfig tunes silence-boundary splitting.
type SplitConfig struct {
	// MinSilence is how long a quiet stretch must last to count as a
	// chunk boundary.
	MinSilence time.Duration
	// SilenceMarginDB is subtracted from the clip's average loudness to
	// form the silence threshold.
	SilenceMarginDB float64
	// Padding is how much surrounding audio each chunk keeps on both
	// sides so word boundaries are not clipped.
	Padding time.Duration
}

// DefaultSplitConfig matches the tuning that worked for phone recordings.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		MinSilence:      500 * time.Millisecond,
		SilenceMarginDB: 14,
		Padding:         250 * time.Millisecond,
	}
}

// DBFS returns the clip's average loudness in decibels relative to full
// scale. A silent clip returns -Inf.
func (c *Clip) DBFS() float64 {
	return rmsDBFS(c.Samples)
}

func rmsDBFS(samples []int16) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/32768.0)
}

// SplitOnSilence cuts the clip at quiet stretches of at least
// cfg.MinSilence, where quiet means per-frame loudness below the clip
// average minus cfg.SilenceMarginDB. Each returned chunk keeps up to
// cfg.Padding of the adjacent silence on both sides. A clip with no
// qualifying silence comes back as a single chunk; a clip that is silent
// throughout yields no chunks.
func (c *Clip) SplitOnSilence(cfg SplitConfig) []*Clip {
	if len(c.Samples) == 0 || c.SampleRate <= 0 {
		return nil
	}

	threshold := c.DBFS() - cfg.SilenceMarginDB
	frame := c.SampleRate / 100 // 10ms analysis frames
	if frame < 1 {
		frame = 1
	}

	// Per-frame silence flags.
	numFrames := (len(c.Samples) + frame - 1) / frame
	silent := make([]bool, numFrames)
	for i := 0; i < numFrames; i++ {
		start := i * frame
		end := start + frame
		if end > len(c.Samples) {
			end = len(c.Samples)
		}
		silent[i] = rmsDBFS(c.Samples[start:end]) < threshold
	}

	minSilentFrames := int(cfg.MinSilence / (10 * time.Millisecond))
	if minSilentFrames < 1 {
		minSilentFrames = 1
	}

	// Collect speech ranges: runs of frames not interrupted by a silence
	// run of at least minSilentFrames.
	type span struct{ start, end int } // frame indices, end exclusive
	var speech []span
	i := 0
	for i < numFrames {
		if silent[i] {
			i++
			continue
		}
		start := i
		for i < numFrames {
			if !silent[i] {
				i++
				continue
			}
			// Measure the silence run; only a long one ends the span.
			j := i
			for j < numFrames && silent[j] {
				j++
			}
			if j-i >= minSilentFrames {
				break
			}
			i = j
		}
		speech = append(speech, span{start: start, end: i})
		// Skip the silence run that terminated the span.
		for i < numFrames && silent[i] {
			i++
		}
	}

	if len(speech) == 0 {
		return nil
	}

	padFrames := int(cfg.Padding / (10 * time.Millisecond))
	chunks := make([]*Clip, 0, len(speech))
	for _, s := range speech {
		start := (s.start - padFrames) * frame
		if start < 0 {
			start = 0
		}
		end := (s.end + padFrames) * frame
		if end > len(c.Samples) {
			end = len(c.Samples)
		}
		chunks = append(chunks, &Clip{
			Samples:    c.Samples[start:end],
			SampleRate: c.SampleRate,
		})
	}
	return chunks
}
