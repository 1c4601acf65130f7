package engine

import (
	"log"
	"time"
)

// commandQueueDepth is large enough that a single IPC client issuing
// commands in the ordinary course of playback never blocks on send;
// the Engine treats the command channel "unbounded" from the caller's
// perspective, which in Go we approximate with a generous buffer
// rather than an actually-unbounded channel.
const commandQueueDepth = 256
const eventQueueDepth = 1024

// Engine is the single-threaded cooperative command/event loop of
// this design. All playlist/cursor/state mutation happens on the single
// goroutine started by Run; everything else communicates with it by
// channel.
type Engine struct {
	opener Opener
	order  OrderProvider
	fft    <-chan []float64 // analyzer broadcast subscription

	commands chan Command
	events   chan Event
	cancel   *Cancellation

	playlist Playlist
	cursor   Cursor
	state    State
	sink     Sink

	debounceDeadline time.Time
	debounceArmed    bool

	progressTick  time.Duration
	debounceWindow time.Duration
}

// New creates an Engine. fft is the Engine's subscription to the
// Real-Time FFT Analyzer's broadcast; it may be nil if no
// analyzer is wired up (events simply never include RealtimeFFT).
// Timings default to ProgressTickInterval/DebounceWindow; call
// SetTimings before Run to override them from configuration.
func New(opener Opener, fft <-chan []float64, cancel *Cancellation) *Engine {
	return &Engine{
		opener:         opener,
		order:          LinearOrder{},
		fft:            fft,
		commands:       make(chan Command, commandQueueDepth),
		events:         make(chan Event, eventQueueDepth),
		cancel:         cancel,
		state:          Stopped,
		progressTick:   ProgressTickInterval,
		debounceWindow: DebounceWindow,
	}
}

// SetTimings overrides the progress-tick interval and playlist-edit
// debounce window. Zero values leave the corresponding default in
// place. Must be called before Run starts the ticker.
func (e *Engine) SetTimings(progressTick, debounceWindow time.Duration) {
	if progressTick > 0 {
		e.progressTick = progressTick
	}
	if debounceWindow > 0 {
		e.debounceWindow = debounceWindow
	}
}

// SetOrderProvider overrides the Next/Previous index source (used to
// back shuffle/repeat modes with internal/queue).
func (e *Engine) SetOrderProvider(o OrderProvider) {
	if o == nil {
		o = LinearOrder{}
	}
	e.order = o
}

// Commands returns the inbound command channel. Closing it ends the
// engine.
func (e *Engine) Commands() chan<- Command { return e.commands }

// Events returns the outbound event channel.
func (e *Engine) Events() <-chan Event { return e.events }

// Run executes the cooperative loop until cancellation fires or the
// command channel is closed. It is meant to run on its own goroutine.
func (e *Engine) Run() {
	ticker := time.NewTicker(e.progressTick)
	defer ticker.Stop()

	for {
		var debounceC <-chan time.Time
		if e.debounceArmed {
			if d := time.Until(e.debounceDeadline); d > 0 {
				t := time.NewTimer(d)
				debounceC = t.C
				defer t.Stop()
			} else {
				e.fireDebounce()
				continue
			}
		}

		select {
		case <-e.cancel.Cancelled():
			e.shutdown()
			return

		case cmd, ok := <-e.commands:
			if !ok {
				e.shutdown()
				return
			}
			e.handle(cmd)

		case snapshot, ok := <-e.fft:
			if ok {
				e.emit(Event{Kind: EvtRealtimeFFT, Spectrum: snapshot})
			}

		case <-ticker.C:
			e.onProgressTick()

		case <-debounceC:
			e.fireDebounce()
		}
	}
}

func (e *Engine) shutdown() {
	if e.sink != nil {
		_ = e.sink.Stop()
		_ = e.sink.Close()
		e.sink = nil
	}
}

func (e *Engine) emit(evt Event) {
	select {
	case e.events <- evt:
	default:
		log.Printf("[ENGINE] event channel full, dropping %s", evt.Kind)
	}
}

func (e *Engine) handle(cmd Command) {
	switch cmd.Kind {
	case CmdLoad:
		e.doLoad(cmd.Index)
	case CmdPlay:
		e.doPlay()
	case CmdPause:
		e.doPause()
	case CmdStop:
		e.doStop()
	case CmdNext:
		e.doNext()
	case CmdPrevious:
		e.doPrevious()
	case CmdSwitch:
		e.doSwitch(cmd.Index)
	case CmdSeek:
		e.doSeek(cmd.Seconds)
	case CmdAddToPlaylist:
		e.doAddToPlaylist(cmd.TrackID, cmd.FilePath)
	case CmdRemoveFromPlaylist:
		e.doRemoveFromPlaylist(cmd.Index)
	case CmdClearPlaylist:
		e.doClearPlaylist()
	case CmdMovePlayListItem:
		e.doMove(cmd.FromIdx, cmd.ToIdx)
	}
}

// doLoad implements the Load command.
func (e *Engine) doLoad(index int) {
	if index < 0 || index >= len(e.playlist) {
		log.Printf("[ENGINE] Load(%d): out of range (len=%d)", index, len(e.playlist))
		return
	}
	item := e.playlist[index]

	if e.sink != nil {
		_ = e.sink.Stop()
		_ = e.sink.Close()
		e.sink = nil
	}

	sink, err := e.opener.Open(item.FilePath)
	if err != nil {
		id := e.errorSentinel()
		e.emit(Event{Kind: EvtError, ID: id, Index: index, Path: item.FilePath, Message: "Failed to open file"})
		e.state = Stopped
		return
	}

	e.sink = sink
	e.cursor = Cursor{Ok: true, Index: index, Item: item}

	if err := e.sink.Play(); err != nil {
		id := e.errorSentinel()
		_ = e.sink.Close()
		e.sink = nil
		e.cursor = Cursor{}
		e.emit(Event{Kind: EvtError, ID: id, Index: index, Path: item.FilePath, Message: "Failed to decode audio"})
		e.state = Stopped
		return
	}

	e.state = Playing
	e.emit(Event{Kind: EvtPlaying, ID: item.TrackID, Index: index, Path: item.FilePath, Position: 0})
}

// errorSentinel returns the TrackID of the item under the cursor, or
// ErrorSentinelID when the cursor is empty (nothing loaded yet, or the
// cursor was cleared by Stop, ClearPlaylist, removal of the current item
// or the end of the playlist); an unset id is never unwrapped.
func (e *Engine) errorSentinel() int32 {
	if e.cursor.Ok {
		return e.cursor.Item.TrackID
	}
	return ErrorSentinelID
}

func (e *Engine) doPlay() {
	if e.sink == nil {
		e.doLoad(0)
		if e.sink == nil {
			return
		}
		return
	}
	if err := e.sink.Play(); err != nil {
		log.Printf("[ENGINE] Play resume failed: %v", err)
		return
	}
	e.state = Playing
	e.emit(Event{Kind: EvtPlaying, ID: e.cursor.Item.TrackID, Index: e.cursor.Index, Path: e.cursor.Item.FilePath, Position: 0})
}

func (e *Engine) doPause() {
	if e.sink == nil {
		return
	}
	if err := e.sink.Pause(); err != nil {
		log.Printf("[ENGINE] Pause failed: %v", err)
		return
	}
	e.state = Paused
	e.emit(Event{Kind: EvtPaused, ID: e.cursor.Item.TrackID, Index: e.cursor.Index, Path: e.cursor.Item.FilePath, Position: e.sink.Position()})
}

func (e *Engine) doStop() {
	if e.sink == nil {
		log.Printf("[ENGINE] Stop: no active sink")
		return
	}
	_ = e.sink.Stop()
	_ = e.sink.Close()
	e.sink = nil
	e.cursor = Cursor{}
	e.state = Stopped
	e.emit(Event{Kind: EvtStopped})
}

func (e *Engine) doNext() {
	if e.cursor.Ok {
		if next, ok := e.order.Next(e.playlist, e.cursor.Index); ok {
			e.doLoad(next)
			return
		}
	}
	e.emit(Event{Kind: EvtEndOfPlaylist})
	e.stopNoEvent()
}

func (e *Engine) doPrevious() {
	if !e.cursor.Ok {
		return
	}
	if prev, ok := e.order.Previous(e.playlist, e.cursor.Index); ok {
		e.doLoad(prev)
	}
}

func (e *Engine) doSwitch(index int) {
	if index < 0 || index >= len(e.playlist) {
		return
	}
	e.doLoad(index)
}

func (e *Engine) doSeek(seconds float64) {
	if e.sink == nil {
		return
	}
	d := time.Duration(seconds * float64(time.Second))
	if err := e.sink.Seek(d); err != nil {
		log.Printf("[ENGINE] Seek failed: %v", err)
		return
	}
	e.state = Playing
	e.emit(Event{Kind: EvtPlaying, ID: e.cursor.Item.TrackID, Index: e.cursor.Index, Path: e.cursor.Item.FilePath, Position: d})
}

func (e *Engine) doAddToPlaylist(id int32, path string) {
	e.playlist = append(e.playlist, Item{TrackID: id, FilePath: path})
	e.armDebounce()
}

func (e *Engine) doRemoveFromPlaylist(index int) {
	if index < 0 || index >= len(e.playlist) {
		log.Printf("[ENGINE] RemoveFromPlaylist(%d): out of range", index)
		return
	}
	e.playlist = append(e.playlist[:index], e.playlist[index+1:]...)

	// Cursor-vs-remove resolution: removing
	// the current item is an implicit Stop; removing one strictly before
	// the cursor shifts it down, preserving identity of the loaded item.
	if e.cursor.Ok {
		switch {
		case index == e.cursor.Index:
			if e.sink != nil {
				_ = e.sink.Stop()
				_ = e.sink.Close()
				e.sink = nil
			}
			e.cursor = Cursor{}
			e.state = Stopped
			e.emit(Event{Kind: EvtStopped})
		case index < e.cursor.Index:
			e.cursor.Index--
		}
	}

	e.armDebounce()
}

func (e *Engine) doClearPlaylist() {
	if e.sink != nil {
		_ = e.sink.Stop()
		_ = e.sink.Close()
		e.sink = nil
	}
	e.playlist = nil
	e.cursor = Cursor{}
	e.state = Stopped
	e.emit(Event{Kind: EvtStopped})
	e.armDebounce()
}

// doMove implements MovePlayListItem: the cursor keeps pointing at the
// same item, and playback state is left untouched.
func (e *Engine) doMove(from, to int) {
	if from < 0 || from >= len(e.playlist) || to < 0 || to >= len(e.playlist) {
		log.Printf("[ENGINE] MovePlayListItem(%d,%d): out of range", from, to)
		return
	}
	item := e.playlist[from]
	without := make(Playlist, 0, len(e.playlist)-1)
	without = append(without, e.playlist[:from]...)
	without = append(without, e.playlist[from+1:]...)

	moved := make(Playlist, 0, len(e.playlist))
	moved = append(moved, without[:to]...)
	moved = append(moved, item)
	moved = append(moved, without[to:]...)
	e.playlist = moved

	if e.cursor.Ok {
		c := e.cursor.Index
		switch {
		case from == c:
			e.cursor.Index = to
		case from < c && to >= c:
			e.cursor.Index = c - 1
		case from > c && to <= c:
			e.cursor.Index = c + 1
		}
	}

	e.armDebounce()
}

func (e *Engine) armDebounce() {
	e.debounceDeadline = time.Now().Add(e.debounceWindow)
	e.debounceArmed = true
}

func (e *Engine) fireDebounce() {
	e.debounceArmed = false
	e.emit(Event{Kind: EvtPlaylistUpdated, IDs: e.playlist.TrackIDs()})
}

// onProgressTick advances playback position on each tick.
func (e *Engine) onProgressTick() {
	if e.state == Stopped || e.sink == nil {
		return
	}
	if e.sink.Empty() {
		id, index, path := e.cursor.Item.TrackID, e.cursor.Index, e.cursor.Item.FilePath
		e.emit(Event{Kind: EvtEndOfTrack, ID: id, Index: index, Path: path})
		e.doNext()
		return
	}
	e.emit(Event{Kind: EvtProgress, ID: e.cursor.Item.TrackID, Index: e.cursor.Index, Path: e.cursor.Item.FilePath, Position: e.sink.Position()})
}

// stopNoEvent drops the sink/cursor without emitting Stopped again; it
// is used after EndOfPlaylist, whose Stopped transition is implicit
// (the state diagram only shows a transition to Stopped, and emitting
// a second event here would violate invariant 6's "no further events"
// framing by doubling up on a state the caller already learned from
// EndOfPlaylist).
func (e *Engine) stopNoEvent() {
	if e.sink != nil {
		_ = e.sink.Stop()
		_ = e.sink.Close()
		e.sink = nil
	}
	e.cursor = Cursor{}
	e.state = Stopped
}

// State returns the engine's current state, for tests and status
// reporting; it is not part of the command/event surface.
func (e *Engine) State() State { return e.state }

// Playlist returns a copy of the current playlist, for tests and
// status reporting.
func (e *Engine) Playlist() Playlist {
	cp := make(Playlist, len(e.playlist))
	copy(cp, e.playlist)
	return cp
}

// Cursor returns the current cursor, for tests and status reporting.
func (e *Engine) Cursor() Cursor { return e.cursor }
