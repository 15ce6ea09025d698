package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV loads a mono 16-bit WAV file into float32 samples plus its
// sample rate. Used for offline preprocessing of recorded buffers
// (resample, normalize, filter) outside live capture.
func ReadWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels != 1 {
		return nil, 0, fmt.Errorf("decode wav: expected mono audio")
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		if v < 0 {
			samples[i] = float32(float64(v) / 0x8000)
		} else {
			samples[i] = float32(float64(v) / 0x7FFF)
		}
	}
	return samples, buf.Format.SampleRate, nil
}

// WriteWAV saves float32 samples as a mono 16-bit WAV file.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)

	pcm := EncodePCM16(samples)
	data := make([]int, len(samples))
	for i := range samples {
		data[i] = int(int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}
