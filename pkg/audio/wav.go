package audio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned for files without a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a WAV file")

func loadWAVMono(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	if dec.WavAudioFormat != 1 || dec.BitDepth != 16 || dec.NumChans < 1 {
		return nil, 0, fmt.Errorf("%s: unsupported WAV encoding: format %d, %d channels, %d bits", path, dec.WavAudioFormat, dec.NumChans, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: read PCM: %w", path, err)
	}
	return mixToMono(buf), buf.Format.SampleRate, nil
}

// mixToMono averages interleaved 16-bit channels into [-1, 1) floats.
func mixToMono(buf *goaudio.IntBuffer) []float32 {
	channels := buf.Format.NumChannels
	samples := make([]float32, len(buf.Data)/channels)
	for i := range samples {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c])
		}
		samples[i] = sum / float32(channels) / 32768.0
	}
	return samples
}
