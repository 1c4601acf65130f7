package analysis

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/austinkregel/rune-musicd/internal/catalog"
)

// BatchExtractor adapts FeatureExtractor to batcher.Extractor: for one
// file, it decodes through ffmpeg to PCM, computes the
// NormalizedAnalysisResult, and serializes the richer supplemented
// feature set (MFCC/tempo/instrument profile) as the batcher's opaque
// extra payload.
type BatchExtractor struct {
	ffmpegPath string
	sampleRate int
}

// NewBatchExtractor locates ffmpeg on PATH and prepares an extractor.
func NewBatchExtractor(sampleRate int) (*BatchExtractor, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	if sampleRate == 0 {
		sampleRate = analysisSampleRate
	}
	return &BatchExtractor{ffmpegPath: path, sampleRate: sampleRate}, nil
}

// Analyze implements batcher.Extractor.
func (b *BatchExtractor) Analyze(absPath string) (catalog.NormalizedAnalysisResult, []byte, error) {
	pcm, err := b.decode(absPath)
	if err != nil {
		return catalog.NormalizedAnalysisResult{}, nil, fmt.Errorf("decoding %s: %w", absPath, err)
	}
	if len(pcm) < 4096 {
		return catalog.NormalizedAnalysisResult{}, nil, fmt.Errorf("%s: audio too short to analyze", absPath)
	}

	extractor := NewFeatureExtractor(b.sampleRate)
	mono := pcmToMono(pcm, 2)

	normalized := extractor.ComputeNormalized(mono)
	extra := extractor.ProcessAudio(mono).ToBytes()

	return normalized, extra, nil
}

func (b *BatchExtractor) decode(path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	args := []string{
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "2",
		"-ar", fmt.Sprintf("%d", b.sampleRate),
		"-",
	}
	cmd := exec.CommandContext(ctx, b.ffmpegPath, args...)
	return cmd.Output()
}
