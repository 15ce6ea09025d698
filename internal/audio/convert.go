package audio

import (
	"encoding/binary"
	"math"
)

// EncodePCM16 converts float32 samples in [-1, 1] to 16-bit little-endian
// signed PCM. Negative samples scale by 0x8000 and non-negative by 0x7FFF
// so that the conversion round-trips exactly with DecodePCM16 at 16-bit
// quantization.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := float64(s)
		if v < -1 {
			v = -1
		} else if v > 1 {
			v = 1
		}
		var scaled float64
		if v < 0 {
			scaled = v * 0x8000
		} else {
			scaled = v * 0x7FFF
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(math.Round(scaled))))
	}
	return out
}

// DecodePCM16 converts 16-bit little-endian signed PCM back to float32
// samples. A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if v < 0 {
			out[i] = float32(float64(v) / 0x8000)
		} else {
			out[i] = float32(float64(v) / 0x7FFF)
		}
	}
	return out
}

// Resample converts between sample rates with linear interpolation.
// Good enough for speech; returns the input unchanged when the rates
// already match.
func Resample(data []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(data) == 0 {
		return data
	}
	ratio := float64(inRate) / float64(outRate)
	outLen := int(math.Round(float64(len(data)) / ratio))
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		if hi > len(data)-1 {
			hi = len(data) - 1
		}
		if lo > len(data)-1 {
			lo = len(data) - 1
		}
		frac := pos - float64(lo)
		out[i] = data[lo]*float32(1-frac) + data[hi]*float32(frac)
	}
	return out
}

// Normalize scales samples so the peak reaches targetLevel. It only ever
// attenuates: a signal already below the target is returned as a copy.
// A non-positive targetLevel defaults to 0.8.
func Normalize(data []float32, targetLevel float64) []float32 {
	if targetLevel <= 0 {
		targetLevel = 0.8
	}
	var peak float64
	for _, s := range data {
		if abs := math.Abs(float64(s)); abs > peak {
			peak = abs
		}
	}
	out := make([]float32, len(data))
	if peak == 0 || targetLevel/peak >= 1 {
		copy(out, data)
		return out
	}
	gain := float32(targetLevel / peak)
	for i, s := range data {
		out[i] = s * gain
	}
	return out
}

// HighPassFilter applies a one-pole IIR high-pass filter, mainly to strip
// DC offset before analysis. The first sample passes through unfiltered.
func HighPassFilter(data []float32, cutoffHz float64, sampleRate int) []float32 {
	out := make([]float32, len(data))
	if len(data) == 0 {
		return out
	}
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	alpha := float32(rc / (rc + dt))

	out[0] = data[0]
	for i := 1; i < len(data); i++ {
		out[i] = alpha * (out[i-1] + data[i] - data[i-1])
	}
	return out
}
