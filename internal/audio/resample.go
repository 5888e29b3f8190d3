package audio

// Resample converts the clip to the target rate using linear
// interpolation. Good enough for speech models; this is not a
// production-grade polyphase resampler.
func (c *Clip) Resample(targetRate int) *Clip {
	if targetRate <= 0 || c.SampleRate == targetRate || len(c.Samples) == 0 {
		return &Clip{Samples: c.Samples, SampleRate: c.SampleRate}
	}

	ratio := float64(c.SampleRate) / float64(targetRate)
	n := int(float64(len(c.Samples)) / ratio)
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(c.Samples)-1 {
			out[i] = c.Samples[len(c.Samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(c.Samples[idx])
		b := float64(c.Samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}

	return &Clip{Samples: out, SampleRate: targetRate}
}
