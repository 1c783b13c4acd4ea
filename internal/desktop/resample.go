package desktop

// resampleLinear converts interleaved f32 PCM at srcRate/srcChannels
// to 48kHz/2ch via linear interpolation. Audio capture backends vary
// in native rate and channel count (system default device); encoding
// always targets 48kHz stereo, Opus's required input format.
func resampleLinear(src []float32, srcRate, srcChannels int) []float32 {
	if srcChannels <= 0 || srcRate <= 0 || len(src) == 0 {
		return nil
	}
	if srcRate == targetSampleRate && srcChannels == targetChannels {
		return src
	}

	mono := src
	if srcChannels == 2 {
		mono = downmixStereo(src)
	} else if srcChannels > 2 {
		mono = downmixN(src, srcChannels)
	}

	resampled := mono
	if srcRate != targetSampleRate {
		resampled = resampleRate(mono, srcRate, targetSampleRate)
	}

	return upmixStereo(resampled)
}

const (
	targetSampleRate = 48000
	targetChannels   = 2
)

func downmixStereo(src []float32) []float32 {
	out := make([]float32, len(src)/2)
	for i := range out {
		out[i] = (src[2*i] + src[2*i+1]) / 2
	}
	return out
}

func downmixN(src []float32, channels int) []float32 {
	frames := len(src) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += src[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

func upmixStereo(mono []float32) []float32 {
	out := make([]float32, len(mono)*2)
	for i, v := range mono {
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

// resampleRate does linear-interpolation sample-rate conversion on a
// mono signal.
func resampleRate(src []float32, srcRate, dstRate int) []float32 {
	if len(src) == 0 || srcRate == dstRate {
		return src
	}
	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(src)) / ratio)
	out := make([]float32, outLen)

	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)

		if idx+1 < len(src) {
			out[i] = src[idx] + float32(frac)*(src[idx+1]-src[idx])
		} else if idx < len(src) {
			out[i] = src[idx]
		}
	}
	return out
}
