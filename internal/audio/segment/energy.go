package segment

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFTSize is the analysis window length in samples.
	FFTSize = 2048
	// HopLength is the stride between analysis frames in samples.
	HopLength = 512

	normEpsilon = 1e-10
)

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// FrameEnergy computes the per-frame spectral energy of samples using a
// centred, zero-padded short-time Fourier transform. The result is min-max
// normalised to [0, 1]. Frame f covers samples centred on f*HopLength.
func FrameEnergy(samples []float32) []float64 {
	if len(samples) == 0 {
		return nil
	}
	frames := 1 + len(samples)/HopLength
	half := FFTSize / 2

	padded := make([]float64, len(samples)+FFTSize)
	for i, s := range samples {
		padded[half+i] = float64(s)
	}

	window := hann(FFTSize)
	fft := fourier.NewFFT(FFTSize)
	seq := make([]float64, FFTSize)
	coeffs := make([]complex128, FFTSize/2+1)
	energy := make([]float64, frames)

	for f := range frames {
		start := f * HopLength
		for i := range seq {
			seq[i] = padded[start+i] * window[i]
		}
		coeffs = fft.Coefficients(coeffs, seq)
		var sum float64
		for _, c := range coeffs {
			m := cmplx.Abs(c)
			sum += m * m
		}
		energy[f] = sum
	}

	lo, hi := energy[0], energy[0]
	for _, e := range energy[1:] {
		lo = min(lo, e)
		hi = max(hi, e)
	}
	scale := hi - lo + normEpsilon
	for i := range energy {
		energy[i] = (energy[i] - lo) / scale
	}
	return energy
}
