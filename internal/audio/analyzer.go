package audio

import (
	"math"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultWindowSize is the analyzer's default FFT window size.
const DefaultWindowSize = 512

// subscriberBuffer is the lossy broadcast channel's depth per
// subscriber; a full channel means the subscriber is slow and the
// newest snapshot is dropped rather than blocking the analyzer
// (slow subscribers may drop intermediate snapshots).
const subscriberBuffer = 2

// Analyzer is the real-time FFT analyzer: a free-running
// ring-buffer accumulator that broadcasts a magnitude spectrum
// whenever its window fills.
type Analyzer struct {
	mu sync.Mutex

	window     int // W, power of two
	channels   int // C, channel-reduction width
	ring       []float64
	writeIdx   int
	filled     int
	fft        *fourier.FFT
	win        []float64 // Hanning window, applied before transform
	computing  int32      // guards against re-entrant computation

	subMu sync.Mutex
	subs  []chan []float64
}

// NewAnalyzer creates an Analyzer with window size w (used as given, not
// rounded; the caller passes a power of two; DefaultWindowSize is used
// when w <= 0) and channel-reduction width c.
func NewAnalyzer(w, c int) *Analyzer {
	if w <= 0 {
		w = DefaultWindowSize
	}
	if c <= 0 {
		c = 1
	}
	win := make([]float64, w)
	for i := range win {
		win[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(w-1)))
	}
	return &Analyzer{
		window:   w,
		channels: c,
		ring:     make([]float64, w),
		fft:      fourier.NewFFT(w),
		win:      win,
	}
}

// AddData is the ingress point: it pushes samples into the ring,
// overwriting the oldest entry, reducing each frame of up to C channel
// samples to a single value by summation. It is safe to call from the
// audio sink's tap callback; the only synchronization is one mutex.
func (a *Analyzer) AddData(samples []int16, channels int) {
	if channels <= 0 {
		channels = 1
	}

	a.mu.Lock()
	for i := 0; i+channels <= len(samples); i += channels {
		var sum float64
		n := channels
		if n > a.channels {
			n = a.channels
		}
		for ch := 0; ch < n; ch++ {
			sum += float64(samples[i+ch]) / 32768.0
		}

		a.ring[a.writeIdx] = sum
		a.writeIdx = (a.writeIdx + 1) % a.window
		if a.filled < a.window {
			a.filled++
		}
	}
	full := a.filled >= a.window
	a.mu.Unlock()

	if full && atomic.CompareAndSwapInt32(&a.computing, 0, 1) {
		a.computeAndBroadcast()
		atomic.StoreInt32(&a.computing, 0)
	}
}

// computeAndBroadcast windows the current ring, computes the
// magnitude spectrum, and fans it out to subscribers. One-sided
// (length W/2): the mirrored upper half of a real FFT carries no
// additional information for the visualization consumers this feeds.
func (a *Analyzer) computeAndBroadcast() {
	a.mu.Lock()
	windowed := make([]float64, a.window)
	for i := 0; i < a.window; i++ {
		idx := (a.writeIdx + i) % a.window
		windowed[i] = a.ring[idx] * a.win[i]
	}
	a.mu.Unlock()

	coeffs := a.fft.Coefficients(nil, windowed)
	half := a.window / 2
	magnitudes := make([]float64, half)
	for i := 0; i < half; i++ {
		re, im := real(coeffs[i]), imag(coeffs[i])
		magnitudes[i] = math.Sqrt(re*re + im*im)
	}

	a.subMu.Lock()
	for _, ch := range a.subs {
		select {
		case ch <- magnitudes:
		default:
			// Slow subscriber: drop this snapshot rather than block.
		}
	}
	a.subMu.Unlock()
}

// Subscribe returns a lossy broadcast receiver of magnitude-spectrum
// snapshots. The channel is never closed and there is no way to
// unsubscribe; the Analyzer keeps sending to it for its whole lifetime.
func (a *Analyzer) Subscribe() <-chan []float64 {
	ch := make(chan []float64, subscriberBuffer)
	a.subMu.Lock()
	a.subs = append(a.subs, ch)
	a.subMu.Unlock()
	return ch
}

// WindowSize returns the configured W.
func (a *Analyzer) WindowSize() int { return a.window }

// ToBands reduces a raw magnitude spectrum into numBands logarithmic,
// dB-normalized 0-255 values for legacy byte-oriented visualizers
// (OS media art / IPC push), independent of the analyzer's internal
// state.
func ToBands(spectrum []float64, sampleRate, numBands int) []uint8 {
	if numBands <= 0 {
		numBands = 128
	}
	bands := make([]float64, numBands)
	counts := make([]int, numBands)

	windowLen := len(spectrum) * 2
	freqPerBin := float64(sampleRate) / float64(windowLen)

	minFreq, maxFreq := 20.0, 20000.0
	if float64(sampleRate)/2 < maxFreq {
		maxFreq = float64(sampleRate) / 2
	}
	logMin, logMax := math.Log10(minFreq), math.Log10(maxFreq)
	logRange := logMax - logMin

	for bin := 1; bin < len(spectrum); bin++ {
		freq := float64(bin) * freqPerBin
		if freq < minFreq || freq > maxFreq {
			continue
		}
		logFreq := math.Log10(freq)
		band := int((logFreq - logMin) / logRange * float64(numBands))
		if band >= numBands {
			band = numBands - 1
		}
		if band < 0 {
			band = 0
		}

		db := 20 * math.Log10(spectrum[bin]/float64(windowLen)+1e-10)
		normalized := (db + 60) / 60 * 255
		if normalized < 0 {
			normalized = 0
		}
		if normalized > 255 {
			normalized = 255
		}
		bands[band] += normalized
		counts[band]++
	}

	out := make([]uint8, numBands)
	for i := range bands {
		if counts[i] > 0 {
			bands[i] /= float64(counts[i])
		}
		if bands[i] > 255 {
			bands[i] = 255
		}
		out[i] = uint8(bands[i])
	}
	return out
}
