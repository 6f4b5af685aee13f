package playback

import (
	"context"
	"math"

	"stemsync/internal/media"
)

// SeekEpsilon is how far before the end a seek past the duration lands.
const SeekEpsilon = 0.001

// PlaybackState is a snapshot of the primary timeline.
type PlaybackState struct {
	CurrentTime float64 `json:"currentTime"`
	IsPlaying   bool    `json:"isPlaying"`
	Duration    float64 `json:"duration"`
}

// Clock is the primary timeline: the video element every other clock
// follows.
type Clock struct {
	el media.Element
}

// NewClock wraps the primary video element.
func NewClock(el media.Element) *Clock {
	return &Clock{el: el}
}

// HasSource reports whether a primary video is loaded.
func (c *Clock) HasSource() bool { return c.el.Source() != "" }

// Play starts the primary timeline.
func (c *Clock) Play(ctx context.Context) error {
	return c.el.Play(ctx)
}

// Pause stops the primary timeline.
func (c *Clock) Pause() { c.el.Pause() }

// Seek moves the primary playhead to t and keeps the play/pause state it
// had before the seek. Targets past the duration land SeekEpsilon before
// the end; negative targets land at 0; NaN and infinities are ignored.
func (c *Clock) Seek(t float64) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return
	}
	if t < 0 {
		t = 0
	}
	if d := c.el.Duration(); d > 0 && t >= d {
		t = math.Max(0, d-SeekEpsilon)
	}

	wasPlaying := !c.el.Paused()
	c.el.Seek(t)
	if wasPlaying && c.el.Paused() {
		// Resume failures leave the timeline paused at t.
		_ = c.el.Play(context.Background())
	}
}

// CurrentTime returns the primary playhead position in seconds.
func (c *Clock) CurrentTime() float64 { return c.el.CurrentTime() }

// Paused reports whether the primary timeline is paused.
func (c *Clock) Paused() bool { return c.el.Paused() }

// Muted reports whether the primary video's own audio is muted.
func (c *Clock) Muted() bool { return c.el.Muted() }

// SetMuted mutes or unmutes the primary video's own audio.
func (c *Clock) SetMuted(muted bool) { c.el.SetMuted(muted) }

// State returns the current playback snapshot.
func (c *Clock) State() PlaybackState {
	return PlaybackState{
		CurrentTime: c.el.CurrentTime(),
		IsPlaying:   !c.el.Paused(),
		Duration:    c.el.Duration(),
	}
}

// On subscribes h to a primary timeline event.
func (c *Clock) On(ev media.Event, h media.Handler) *media.Subscription {
	return c.el.On(ev, h)
}
