// Package media models a playable media element: a clock with a source,
// transport controls, and observable state transitions.
package media

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoSource is returned by Play when the element has no source loaded.
	ErrNoSource = errors.New("media element has no source")

	// ErrAutoplayBlocked is returned by Play when playback was refused by
	// the environment's autoplay policy.
	ErrAutoplayBlocked = errors.New("autoplay blocked")
)

// Element is a single media element. Implementations are not safe for
// concurrent use; the owner serializes access.
type Element interface {
	// Source returns the current source URL, or "" when unloaded.
	Source() string
	// SetSource replaces the source. An empty url unloads the element.
	// A non-empty url starts a load that ends with EventLoadedMetadata or
	// EventError.
	SetSource(url string)

	Play(ctx context.Context) error
	Pause()
	Paused() bool

	CurrentTime() float64
	// Seek moves the playhead, emitting EventSeeking then EventSeeked.
	Seek(t float64)
	// Duration returns the loaded source's duration in seconds, or 0 when
	// unknown.
	Duration() float64

	Muted() bool
	SetMuted(muted bool)

	On(ev Event, h Handler) *Subscription
}

// Scheduler runs f after d. The returned stop function cancels f if it has
// not started and reports whether it did so.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(d time.Duration, f func()) func() bool

// AfterFunc implements Scheduler.
func (fn SchedulerFunc) AfterFunc(d time.Duration, f func()) func() bool {
	return fn(d, f)
}

// TimerScheduler schedules with time.AfterFunc. Each callback is passed
// through wrap, which lets the owner run it under its own lock.
func TimerScheduler(wrap func(func())) Scheduler {
	return SchedulerFunc(func(d time.Duration, f func()) func() bool {
		t := time.AfterFunc(d, func() { wrap(f) })
		return t.Stop
	})
}
