package analysis

import (
	"math"

	"github.com/austinkregel/rune-musicd/internal/catalog"
)

// ComputeNormalized derives the catalog's NormalizedAnalysisResult (seven
// spectral descriptors plus a 12-element chroma vector) from the same
// mono sample stream ProcessAudio consumes, by averaging the magnitude
// spectrum across all analysis frames and deriving each descriptor
// from that averaged spectrum — a standard simplification for
// track-level (rather than frame-level) descriptors.
func (fe *FeatureExtractor) ComputeNormalized(samples []float64) catalog.NormalizedAnalysisResult {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	numFrames := (len(samples) - analysisFFTSize) / hopSize
	if numFrames < 1 {
		return catalog.NormalizedAnalysisResult{}
	}

	avg := make([]float64, analysisFFTSize/2)
	frames := 0
	for i := 0; i < numFrames; i++ {
		start := i * hopSize
		end := start + analysisFFTSize
		if end > len(samples) {
			break
		}
		windowed := make([]float64, analysisFFTSize)
		for j := 0; j < analysisFFTSize; j++ {
			windowed[j] = samples[start+j] * fe.window[j]
		}
		coeffs := fe.fft.Coefficients(nil, windowed)
		for j := range avg {
			re, im := real(coeffs[j]), imag(coeffs[j])
			avg[j] += math.Sqrt(re*re + im*im)
		}
		frames++
	}
	if frames == 0 {
		return catalog.NormalizedAnalysisResult{}
	}
	for j := range avg {
		avg[j] /= float64(frames)
	}

	freqPerBin := float64(fe.sampleRate) / float64(analysisFFTSize)

	centroid := spectralCentroidOf(avg, freqPerBin)
	rolloff := spectralRolloffOf(avg, freqPerBin, 0.85)
	flatness := spectralFlatnessOf(avg)
	slope := spectralSlopeOf(avg, freqPerBin)
	spread, skewness, kurtosis := spectralMomentsOf(avg, freqPerBin, centroid)
	chroma := chromaOf(avg, freqPerBin)

	return catalog.NormalizedAnalysisResult{
		Centroid:   &centroid,
		Flatness:   &flatness,
		Slope:      &slope,
		Rolloff:    &rolloff,
		Spread:     &spread,
		Skewness:   &skewness,
		Kurtosis:   &kurtosis,
		Chroma:     chroma,
		HaveChroma: true,
	}
}

func spectralCentroidOf(spectrum []float64, freqPerBin float64) float64 {
	var weighted, total float64
	for i, mag := range spectrum {
		freq := float64(i) * freqPerBin
		weighted += freq * mag
		total += mag
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

func spectralRolloffOf(spectrum []float64, freqPerBin, pct float64) float64 {
	var total float64
	for _, mag := range spectrum {
		total += mag
	}
	if total == 0 {
		return 0
	}
	threshold := total * pct
	var cum float64
	for i, mag := range spectrum {
		cum += mag
		if cum >= threshold {
			return float64(i) * freqPerBin
		}
	}
	return float64(len(spectrum)-1) * freqPerBin
}

// spectralFlatnessOf is the ratio of the geometric to the arithmetic
// mean of the spectrum: near 1 for noise-like spectra, near 0 for
// tonal ones.
func spectralFlatnessOf(spectrum []float64) float64 {
	var logSum, sum float64
	n := 0
	for _, mag := range spectrum {
		if mag <= 0 {
			continue
		}
		logSum += math.Log(mag)
		sum += mag
		n++
	}
	if n == 0 || sum == 0 {
		return 0
	}
	geoMean := math.Exp(logSum / float64(n))
	arithMean := sum / float64(n)
	return geoMean / arithMean
}

// spectralSlopeOf is the linear-regression slope of magnitude against
// frequency, a coarse brightness-trend descriptor.
func spectralSlopeOf(spectrum []float64, freqPerBin float64) float64 {
	n := float64(len(spectrum))
	if n == 0 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, mag := range spectrum {
		x := float64(i) * freqPerBin
		sumX += x
		sumY += mag
		sumXY += x * mag
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// spectralMomentsOf returns spread (standard deviation), skewness, and kurtosis
// of the spectrum about its centroid, the higher-order descriptors of
// spectral shape.
func spectralMomentsOf(spectrum []float64, freqPerBin, centroid float64) (spread, skewness, kurtosis float64) {
	var total, m2, m3, m4 float64
	for i, mag := range spectrum {
		freq := float64(i) * freqPerBin
		d := freq - centroid
		total += mag
		m2 += mag * d * d
		m3 += mag * d * d * d
		m4 += mag * d * d * d * d
	}
	if total == 0 {
		return 0, 0, 0
	}
	m2 /= total
	m3 /= total
	m4 /= total

	spread = math.Sqrt(m2)
	if spread == 0 {
		return spread, 0, 0
	}
	skewness = m3 / (spread * spread * spread)
	kurtosis = m4/(spread*spread*spread*spread) - 3
	return spread, skewness, kurtosis
}

// chromaOf folds spectrum energy into 12 pitch classes (a chromagram),
// relative to A4 = 440Hz.
func chromaOf(spectrum []float64, freqPerBin float64) [12]float64 {
	var chroma [12]float64
	const refFreq = 440.0 / 16 // A0, lowest pitch class reference

	for i, mag := range spectrum {
		freq := float64(i) * freqPerBin
		if freq < 20 {
			continue
		}
		pitchClass := int(math.Round(12*math.Log2(freq/refFreq))) % 12
		if pitchClass < 0 {
			pitchClass += 12
		}
		chroma[pitchClass] += mag
	}

	var total float64
	for _, v := range chroma {
		total += v
	}
	if total > 0 {
		for i := range chroma {
			chroma[i] /= total
		}
	}
	return chroma
}
