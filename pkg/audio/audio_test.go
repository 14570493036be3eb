package audio

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoise(t *testing.T) {
	a := Noise(rand.New(rand.NewSource(42)), 16000)
	b := Noise(rand.New(rand.NewSource(42)), 16000)
	assert.Equal(t, a, b)

	for _, s := range a {
		assert.GreaterOrEqual(t, s, int16(-NoiseAmplitude))
		assert.Less(t, s, int16(NoiseAmplitude))
	}
}

func TestChunks(t *testing.T) {
	pcm := make([]int16, 3000)
	chunks := Chunks(pcm, 1280)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1280)
	assert.Len(t, chunks[1], 1280)
	assert.Len(t, chunks[2], 440)

	assert.Nil(t, Chunks(pcm, 0))
	assert.Nil(t, Chunks(nil, 1280))
}

func TestToPCM16(t *testing.T) {
	pcm, err := ToPCM16([]float32{0, 0.5, -0.5, 1.5, -1.5}, SampleRate)
	require.NoError(t, err)
	assert.Equal(t, []int16{0, 16384, -16384, 32767, -32768}, pcm)

	_, err = ToPCM16([]float32{0}, 0)
	assert.Error(t, err)
}

func TestToPCM16Resamples(t *testing.T) {
	in := make([]float32, 48000)
	pcm, err := ToPCM16(in, 48000)
	require.NoError(t, err)
	assert.NotEmpty(t, pcm)
	assert.LessOrEqual(t, len(pcm), SampleRate+64)
}

// writeWAV encodes interleaved 16-bit samples to a temp file.
func writeWAV(t *testing.T, data []int, rate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

func TestLoadWAV(t *testing.T) {
	path := writeWAV(t, []int{0, 16384, -32768}, 16000, 1)

	samples, rate, err := LoadMono(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	assert.Equal(t, []float32{0, 0.5, -1}, samples)
}

func TestLoadWAVStereo(t *testing.T) {
	path := writeWAV(t, []int{16384, 0, -16384, -16384}, 44100, 2)

	samples, rate, err := LoadMono(path)
	require.NoError(t, err)
	assert.Equal(t, 44100, rate)
	assert.Equal(t, []float32{0.25, -0.5}, samples)
}

func TestLoadWAVErrors(t *testing.T) {
	dir := t.TempDir()

	notWAV := filepath.Join(dir, "id3.wav")
	require.NoError(t, os.WriteFile(notWAV, []byte("ID3\x04 not a wav file"), 0o644))
	_, _, err := LoadMono(notWAV)
	assert.ErrorIs(t, err, ErrNotWAV)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, []uint16{3, 1})
	binary.Write(&buf, binary.LittleEndian, []uint32{16000, 64000})
	binary.Write(&buf, binary.LittleEndian, []uint16{4, 32})
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	float := filepath.Join(dir, "float.wav")
	require.NoError(t, os.WriteFile(float, buf.Bytes(), 0o644))
	_, _, err = LoadMono(float)
	assert.ErrorContains(t, err, "unsupported WAV encoding")
}

func TestLoadWAVOversizedDataChunk(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(40))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, []uint16{1, 1})
	binary.Write(&buf, binary.LittleEndian, []uint32{16000, 32000})
	binary.Write(&buf, binary.LittleEndian, []uint16{2, 16})
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFF0))
	binary.Write(&buf, binary.LittleEndian, []int16{16384, -16384})

	path := filepath.Join(t.TempDir(), "huge.wav")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	samples, rate, err := LoadMono(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	assert.Equal(t, []float32{0.5, -0.5}, samples)
}

func TestLoadMonoUnsupported(t *testing.T) {
	_, _, err := LoadMono("clip.flac")
	assert.ErrorContains(t, err, "unsupported audio format: .flac")
}

func TestReadLAMEEncoderDelay(t *testing.T) {
	buf := make([]byte, 1024)
	copy(buf[100:], "LAME3.100")
	// delay 1105 (0x451), padding 0
	copy(buf[121:], []byte{0x45, 0x10, 0x00})
	assert.Equal(t, 1105, readLAMEEncoderDelay(bytes.NewReader(buf)))

	assert.Equal(t, defaultEncoderDelay, readLAMEEncoderDelay(bytes.NewReader(make([]byte, 1024))))
	assert.Equal(t, defaultEncoderDelay, readLAMEEncoderDelay(bytes.NewReader(nil)))
}

func TestLoadMP3(t *testing.T) {
	matches, _ := filepath.Glob("../../testdata/*.mp3")
	if len(matches) == 0 {
		t.Skip("No MP3 files found in testdata directory")
	}

	samples, rate, err := LoadMono(matches[0])
	require.NoError(t, err)
	assert.NotEmpty(t, samples)

	pcm, err := ToPCM16(samples, rate)
	require.NoError(t, err)
	assert.NotEmpty(t, Chunks(pcm, 1280))
}
