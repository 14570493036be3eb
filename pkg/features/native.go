package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// NativeMel approximates the melspectrogram model in Go so the pipeline can
// run without it: 512-point Hann-windowed power spectra every MelHop samples,
// MelBins triangular mel bands between MinHz and MaxHz, log power in dB, then
// the same x/10 + 2 transform applied to the model output.
type NativeMel struct {
	FFTSize int
	MinHz   float64
	MaxHz   float64

	fft     *fourier.FFT
	window  []float64
	filters [][]float64
}

// NewNativeMel returns a mel frontend with openWakeWord-like parameters.
func NewNativeMel() *NativeMel {
	m := &NativeMel{FFTSize: 512, MinHz: 60, MaxHz: 3800}
	m.fft = fourier.NewFFT(m.FFTSize)
	m.window = hannWindow(m.FFTSize)
	m.filters = melFilterbank(MelBins, m.FFTSize, SampleRate, m.MinHz, m.MaxHz)
	return m
}

// MelSpectrogram returns (len(samples)-FFTSize)/MelHop + 1 frames.
func (m *NativeMel) MelSpectrogram(samples []int16) ([][]float32, error) {
	if len(samples) < m.FFTSize {
		return nil, nil
	}
	numFrames := (len(samples)-m.FFTSize)/MelHop + 1

	numBins := m.FFTSize/2 + 1
	frame := make([]float64, m.FFTSize)
	power := make([]float64, numBins)
	var coeffs []complex128

	result := make([][]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		start := i * MelHop
		for j := range frame {
			frame[j] = float64(samples[start+j]) * m.window[j]
		}

		coeffs = m.fft.Coefficients(coeffs, frame)
		for j := 0; j < numBins; j++ {
			re, im := real(coeffs[j]), imag(coeffs[j])
			power[j] = re*re + im*im
		}

		row := make([]float32, MelBins)
		for b, filter := range m.filters {
			var e float64
			for j, w := range filter {
				e += w * power[j]
			}
			db := 10 * math.Log10(math.Max(e, 1e-10))
			row[b] = float32(db/10 + 2)
		}
		result[i] = row
	}

	return result, nil
}

// hannWindow generates a Hann window of given size.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds triangular filters over the one-sided spectrum.
func melFilterbank(bands, fftSize, sampleRate int, minHz, maxHz float64) [][]float64 {
	numBins := fftSize/2 + 1
	lo, hi := hzToMel(minHz), hzToMel(maxHz)

	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = melToHz(lo + (hi-lo)*float64(i)/float64(bands+1))
	}

	binHz := float64(sampleRate) / float64(fftSize)
	filters := make([][]float64, bands)
	for b := 0; b < bands; b++ {
		left, center, right := edges[b], edges[b+1], edges[b+2]
		filters[b] = make([]float64, numBins)
		for j := 0; j < numBins; j++ {
			f := float64(j) * binHz
			switch {
			case f > left && f <= center:
				filters[b][j] = (f - left) / (center - left)
			case f > center && f < right:
				filters[b][j] = (right - f) / (right - center)
			}
		}
	}
	return filters
}
