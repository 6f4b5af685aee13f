package playback

import (
	"context"
	"math"
	"testing"
	"time"

	"stemsync/internal/media"
	"stemsync/internal/media/mediatest"
)

func newTestClock(t *testing.T, duration float64) (*Clock, *media.Sim, *mediatest.Clock) {
	t.Helper()
	wall := mediatest.NewClock()
	video := media.NewSim(media.SimOptions{
		Now:     wall.Now,
		Resolve: func(string) (float64, error) { return duration, nil },
	})
	video.SetSource("video.mp4")
	return NewClock(video), video, wall
}

func TestClock_SeekKeepsPlayState(t *testing.T) {
	c, _, wall := newTestClock(t, 120)

	c.Seek(10)
	if c.State().IsPlaying {
		t.Error("seek while paused should stay paused")
	}

	if err := c.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	wall.Advance(2 * time.Second)
	c.Seek(60)

	st := c.State()
	if !st.IsPlaying || st.CurrentTime != 60 {
		t.Errorf("state after seek = %+v", st)
	}
}

func TestClock_SeekClamps(t *testing.T) {
	c, _, _ := newTestClock(t, 120)

	c.Seek(500)
	if got := c.CurrentTime(); math.Abs(got-(120-SeekEpsilon)) > 1e-9 {
		t.Errorf("seek past end = %v, want %v", got, 120-SeekEpsilon)
	}

	c.Seek(-4)
	if got := c.CurrentTime(); got != 0 {
		t.Errorf("seek before start = %v, want 0", got)
	}

	c.Seek(30)
	c.Seek(math.Inf(1))
	if got := c.CurrentTime(); got != 30 {
		t.Errorf("infinite seek should be ignored, at %v", got)
	}
}

func TestClock_SeekEmitsEvents(t *testing.T) {
	c, _, _ := newTestClock(t, 120)
	var got []media.Event
	c.On(media.EventSeeking, func(ev media.Event) { got = append(got, ev) })
	c.On(media.EventSeeked, func(ev media.Event) { got = append(got, ev) })

	c.Seek(5)

	if len(got) != 2 || got[0] != media.EventSeeking || got[1] != media.EventSeeked {
		t.Errorf("events = %v", got)
	}
}

func TestClock_NoSource(t *testing.T) {
	c := NewClock(media.NewSim(media.SimOptions{}))
	if c.HasSource() {
		t.Error("expected no source")
	}
	if err := c.Play(context.Background()); err == nil {
		t.Error("expected Play to fail without a source")
	}
}
