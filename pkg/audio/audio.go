// Package audio loads audio files and produces the 16 kHz int16 chunks the
// feature pipeline consumes.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// LoadMono loads an audio file and returns mono float32 samples in [-1, 1]
// and the sample rate.
func LoadMono(path string) ([]float32, int, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3":
		return loadMP3Mono(path)
	case ".wav":
		return loadWAVMono(path)
	default:
		return nil, 0, fmt.Errorf("unsupported audio format: %s", ext)
	}
}

// Additional samples go-mp3 produces on top of the encoder delay.
const goMP3DecoderDelay = 924

// Default encoder delay if we can't read it from the LAME header
const defaultEncoderDelay = 576

// readLAMEEncoderDelay reads the encoder delay from the LAME/Xing header if
// present.
func readLAMEEncoderDelay(r io.Reader) int {
	buf := make([]byte, 4096)
	n, err := io.ReadFull(r, buf)
	if n < 200 || (err != nil && err != io.ErrUnexpectedEOF) {
		return defaultEncoderDelay
	}
	buf = buf[:n]

	lameIdx := bytes.Index(buf, []byte("LAME"))
	if lameIdx == -1 {
		return defaultEncoderDelay
	}

	// 12 bits of delay then 12 bits of padding, 21 bytes after "LAME"
	delayOffset := lameIdx + 21
	if delayOffset+3 > len(buf) {
		return defaultEncoderDelay
	}
	b := buf[delayOffset : delayOffset+3]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)

	if delay > 4096 {
		return defaultEncoderDelay
	}
	return delay
}

func loadMP3Mono(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	totalDelay := readLAMEEncoderDelay(f) + goMP3DecoderDelay
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("failed to rewind file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	// 16-bit stereo interleaved
	pcmData, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}

	numSamplePairs := len(pcmData) / 4
	samples := make([]float32, numSamplePairs)
	for i := range numSamplePairs {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcmData[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcmData[offset+2:]))
		samples[i] = (float32(left) + float32(right)) / 2.0 / 32768.0
	}

	if len(samples) > totalDelay {
		samples = samples[totalDelay:]
	}

	return samples, decoder.SampleRate(), nil
}
