package engine

import (
	"testing"
	"time"
)

type fakeSink struct {
	playing bool
	pos     time.Duration
	closed  bool
}

func (s *fakeSink) Play() error            { s.playing = true; return nil }
func (s *fakeSink) Pause() error           { s.playing = false; return nil }
func (s *fakeSink) Stop() error            { s.playing = false; s.pos = 0; return nil }
func (s *fakeSink) Position() time.Duration { return s.pos }
func (s *fakeSink) Empty() bool            { return false }
func (s *fakeSink) Seek(d time.Duration) error {
	s.pos = d
	return nil
}
func (s *fakeSink) Tap(period time.Duration, fn func(samples []int16, channels int)) {}
func (s *fakeSink) Close() error { s.closed = true; return nil }

type fakeOpener struct {
	opened []string
}

func (o *fakeOpener) Open(path string) (Sink, error) {
	o.opened = append(o.opened, path)
	return &fakeSink{}, nil
}

func newTestEngine() (*Engine, *fakeOpener) {
	opener := &fakeOpener{}
	cancel := NewCancellation()
	e := New(opener, nil, cancel)
	go e.Run()
	return e, opener
}

func drainUntil(t *testing.T, e *Engine, kind EventKind) Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-e.Events():
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestAddToPlaylistAndSwitch(t *testing.T) {
	e, opener := newTestEngine()
	defer e.cancel.Cancel()

	e.Commands() <- Command{Kind: CmdAddToPlaylist, TrackID: 1, FilePath: "/a.mp3"}
	e.Commands() <- Command{Kind: CmdAddToPlaylist, TrackID: 2, FilePath: "/b.mp3"}
	e.Commands() <- Command{Kind: CmdSwitch, Index: 1}

	drainUntil(t, e, EvtPlaying)

	cursor := e.Cursor()
	if !cursor.Ok || cursor.Index != 1 || cursor.Item.FilePath != "/b.mp3" {
		t.Fatalf("unexpected cursor after switch: %+v", cursor)
	}
	if len(opener.opened) == 0 || opener.opened[len(opener.opened)-1] != "/b.mp3" {
		t.Fatalf("expected opener to open /b.mp3, got %v", opener.opened)
	}
}

func TestPauseAndStop(t *testing.T) {
	e, _ := newTestEngine()
	defer e.cancel.Cancel()

	e.Commands() <- Command{Kind: CmdAddToPlaylist, TrackID: 1, FilePath: "/a.mp3"}
	e.Commands() <- Command{Kind: CmdSwitch, Index: 0}
	drainUntil(t, e, EvtPlaying)

	e.Commands() <- Command{Kind: CmdPause}
	drainUntil(t, e, EvtPaused)
	if e.State() != Paused {
		t.Fatalf("expected Paused, got %v", e.State())
	}

	e.Commands() <- Command{Kind: CmdStop}
	drainUntil(t, e, EvtStopped)
	if e.State() != Stopped {
		t.Fatalf("expected Stopped, got %v", e.State())
	}
}

func TestNextAdvancesPlaylist(t *testing.T) {
	e, _ := newTestEngine()
	defer e.cancel.Cancel()

	e.Commands() <- Command{Kind: CmdAddToPlaylist, TrackID: 1, FilePath: "/a.mp3"}
	e.Commands() <- Command{Kind: CmdAddToPlaylist, TrackID: 2, FilePath: "/b.mp3"}
	e.Commands() <- Command{Kind: CmdSwitch, Index: 0}
	drainUntil(t, e, EvtPlaying)

	e.Commands() <- Command{Kind: CmdNext}
	drainUntil(t, e, EvtPlaying)

	cursor := e.Cursor()
	if cursor.Index != 1 {
		t.Fatalf("expected index 1 after Next, got %d", cursor.Index)
	}
}

func TestErrorSentinelBeforeAnyLoad(t *testing.T) {
	e, _ := newTestEngine()
	defer e.cancel.Cancel()

	if got := e.errorSentinel(); got != ErrorSentinelID {
		t.Errorf("expected sentinel %d before any load, got %d", ErrorSentinelID, got)
	}
}

func TestDoMoveCursorAdjustment(t *testing.T) {
	cases := []struct {
		name       string
		from, to   int
		cursor     int
		wantCursor int
	}{
		{"moved item is the cursor", 0, 2, 0, 2},
		{"move spans cursor leftward", 0, 2, 1, 0},
		{"move spans cursor rightward", 2, 0, 1, 2},
		{"move doesn't touch cursor", 2, 1, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := New(&fakeOpener{}, nil, NewCancellation())
			e.playlist = Playlist{{TrackID: 1}, {TrackID: 2}, {TrackID: 3}}
			e.cursor = Cursor{Ok: true, Index: tc.cursor, Item: e.playlist[tc.cursor]}

			e.doMove(tc.from, tc.to)

			if e.cursor.Index != tc.wantCursor {
				t.Errorf("doMove(%d,%d) from cursor=%d: got cursor=%d, want %d",
					tc.from, tc.to, tc.cursor, e.cursor.Index, tc.wantCursor)
			}
		})
	}
}

func TestDoMoveOutOfRangeIsNoop(t *testing.T) {
	e := New(&fakeOpener{}, nil, NewCancellation())
	e.playlist = Playlist{{TrackID: 1}, {TrackID: 2}}
	e.cursor = Cursor{Ok: true, Index: 0, Item: e.playlist[0]}

	e.doMove(-1, 1)

	if len(e.playlist) != 2 || e.cursor.Index != 0 {
		t.Fatalf("expected out-of-range move to be a no-op, got playlist=%v cursor=%+v", e.playlist, e.cursor)
	}
}

func TestDoRemoveFromPlaylistCursorResolution(t *testing.T) {
	cases := []struct {
		name        string
		removeIndex int
		cursor      int
		wantStopped bool
		wantCursor  int
	}{
		{"remove before cursor shifts it down", 0, 2, false, 1},
		{"remove after cursor leaves it untouched", 2, 0, false, 0},
		{"remove at cursor stops playback", 1, 1, true, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := New(&fakeOpener{}, nil, NewCancellation())
			e.playlist = Playlist{{TrackID: 1}, {TrackID: 2}, {TrackID: 3}}
			e.cursor = Cursor{Ok: true, Index: tc.cursor, Item: e.playlist[tc.cursor]}
			e.sink = &fakeSink{}
			e.state = Playing

			// Drain the implicit EvtStopped/armDebounce side effects via a
			// buffered events channel so doRemoveFromPlaylist never blocks.
			e.events = make(chan Event, eventQueueDepth)

			e.doRemoveFromPlaylist(tc.removeIndex)

			if len(e.playlist) != 2 {
				t.Fatalf("expected playlist to shrink by one, got %v", e.playlist)
			}
			if tc.wantStopped {
				if e.cursor.Ok || e.state != Stopped {
					t.Fatalf("expected cursor cleared and state Stopped, got cursor=%+v state=%v", e.cursor, e.state)
				}
			} else {
				if !e.cursor.Ok || e.cursor.Index != tc.wantCursor {
					t.Fatalf("expected cursor index %d, got %+v", tc.wantCursor, e.cursor)
				}
			}
		})
	}
}

func TestDebounceCoalescesPlaylistEdits(t *testing.T) {
	e := New(&fakeOpener{}, nil, NewCancellation())
	e.SetTimings(0, 20*time.Millisecond)
	go e.Run()
	defer e.cancel.Cancel()

	e.Commands() <- Command{Kind: CmdAddToPlaylist, TrackID: 1, FilePath: "/a.mp3"}
	e.Commands() <- Command{Kind: CmdAddToPlaylist, TrackID: 2, FilePath: "/b.mp3"}
	e.Commands() <- Command{Kind: CmdAddToPlaylist, TrackID: 3, FilePath: "/c.mp3"}

	evt := drainUntil(t, e, EvtPlaylistUpdated)
	if len(evt.IDs) != 3 {
		t.Fatalf("expected one coalesced event carrying all 3 ids, got %v", evt.IDs)
	}

	select {
	case extra := <-e.Events():
		if extra.Kind == EvtPlaylistUpdated {
			t.Fatalf("expected exactly one PlaylistUpdated event, got a second: %+v", extra)
		}
	case <-time.After(50 * time.Millisecond):
		// no second event arrived, as expected
	}
}

func TestLinearOrderDoesNotWrap(t *testing.T) {
	playlist := Playlist{{TrackID: 1}, {TrackID: 2}, {TrackID: 3}}
	order := LinearOrder{}

	if next, ok := order.Next(playlist, 2); ok {
		t.Errorf("expected no next past the end, got %d", next)
	}
	if prev, ok := order.Previous(playlist, 0); ok {
		t.Errorf("expected no previous before the start, got %d", prev)
	}
	if next, ok := order.Next(playlist, 0); !ok || next != 1 {
		t.Errorf("expected next index 1, got %d ok=%v", next, ok)
	}
}
