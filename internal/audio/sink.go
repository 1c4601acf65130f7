package audio

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/austinkregel/rune-musicd/internal/engine"
)

// TrackOpener implements engine.Opener by decoding through FFmpegDecoder
// into an OtoOutput, installing the analyzer's sample tap on the way.
// It is the audio sink adapter the Engine drives playback through.
//
// Volume sits outside the Engine's command surface: it is a property of
// the output device, not of playback state, so TrackOpener tracks the
// last-requested level itself and applies it to whichever output is
// currently live. Only one track is ever live at a time, matching the
// single-output assumption the daemon has always made.
type TrackOpener struct {
	onTap func(samples []int16, channels int)

	mu      sync.Mutex
	volume  float64
	current *OtoOutput
}

// NewTrackOpener creates an Opener whose sinks forward sample frames to
// onTap (normally the FFT Analyzer's AddData).
func NewTrackOpener(onTap func(samples []int16, channels int)) *TrackOpener {
	return &TrackOpener{onTap: onTap, volume: 1.0}
}

// SetVolume applies level (0.0-1.0) to the currently live output, if
// any, and remembers it for the next Open.
func (o *TrackOpener) SetVolume(level float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = level
	if o.current != nil {
		o.current.SetVolume(level)
	}
}

// Volume returns the last level passed to SetVolume.
func (o *TrackOpener) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

func (o *TrackOpener) Open(path string) (engine.Sink, error) {
	decoder, err := NewFFmpegDecoder()
	if err != nil {
		return nil, fmt.Errorf("decoder unavailable: %w", err)
	}

	// Validate the file is readable/decodable before committing to a
	// background decode, so Open can return DecodeError/IoError
	// synchronously.
	if _, err := decoder.Duration(path); err != nil {
		decoder.Close()
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}

	output, err := NewOtoOutput()
	if err != nil {
		decoder.Close()
		return nil, fmt.Errorf("audio output unavailable: %w", err)
	}
	// Held paused until Play is called: decode may begin filling the
	// buffer immediately, but Write's auto-play check keeps it silent
	// until the Engine issues Play, matching the Load/Play split in
	// the Engine's command table.
	output.Pause()

	if o.onTap != nil {
		output.Tap(16*time.Millisecond, o.onTap)
	}

	o.mu.Lock()
	output.SetVolume(o.volume)
	o.current = output
	o.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	sink := &TrackSink{
		output:  output,
		decoder: decoder,
		path:    path,
		ctx:     ctx,
		cancel:  cancel,
	}
	sink.startDecode(ctx, 0)
	return sink, nil
}

// TrackSink is the per-track handle implementing engine.Sink: one
// decode goroutine feeding one OtoOutput, plus elapsed-position
// bookkeeping (the position()/empty()/seek() contract).
type TrackSink struct {
	mu      sync.Mutex
	output  *OtoOutput
	decoder Decoder
	path    string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	basePosition time.Duration
	resumedAt    time.Time // zero when paused/stopped
}

func (s *TrackSink) startDecode(ctx context.Context, startMs int64) {
	s.done = make(chan struct{})
	done := s.done
	go func() {
		defer close(done)
		if err := s.decoder.DecodeFrom(ctx, s.path, s.output, startMs); err != nil && ctx.Err() == nil {
			log.Printf("[AUDIO] decode of %s ended with error: %v", s.path, err)
		}
	}()
}

func (s *TrackSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output.Resume()
	s.resumedAt = time.Now()
	return nil
}

func (s *TrackSink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.basePosition = s.positionLocked()
	s.resumedAt = time.Time{}
	s.output.Pause()
	return nil
}

func (s *TrackSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	s.output.Stop()
	s.basePosition = 0
	s.resumedAt = time.Time{}
	return nil
}

func (s *TrackSink) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *TrackSink) positionLocked() time.Duration {
	if s.resumedAt.IsZero() {
		return s.basePosition
	}
	return s.basePosition + time.Since(s.resumedAt)
}

// Empty reports whether the track has finished decoding and drained,
// the basis for EndOfTrack detection on the Engine's progress tick.
func (s *TrackSink) Empty() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	default:
		return false
	}
	return s.output.BufferedBytes() == 0
}

func (s *TrackSink) Seek(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	<-s.done

	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel
	s.output.Stop() // clears the buffer; also clears the paused flag
	s.startDecode(ctx, d.Milliseconds())

	s.basePosition = d
	s.resumedAt = time.Now()
	return nil
}

func (s *TrackSink) Tap(period time.Duration, fn func(samples []int16, channels int)) {
	s.output.Tap(period, fn)
}

func (s *TrackSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	err := s.output.Close()
	if cerr := s.decoder.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
