package media

import (
	"context"
	"math"
	"time"
)

// DurationResolver returns the duration in seconds of the media at url.
// A zero duration means unknown.
type DurationResolver func(url string) (float64, error)

// SimOptions configures a Sim.
type SimOptions struct {
	// Now is the wall clock the playhead is extrapolated from. Default time.Now.
	Now func() time.Time
	// Scheduler delivers load completions. When nil, loads complete
	// synchronously inside SetSource.
	Scheduler Scheduler
	// LoadDelay is how long a load takes before EventLoadedMetadata.
	LoadDelay time.Duration
	// Resolve supplies source durations. When nil every source has an
	// unknown duration.
	Resolve DurationResolver
	// Rate is the playback rate. Default 1.
	Rate float64
	// BlockAutoplay makes every Play call fail with ErrAutoplayBlocked.
	BlockAutoplay bool
}

// Sim is an in-process media element. While playing, its position is the
// last anchored position plus elapsed wall time scaled by the rate.
type Sim struct {
	opts SimOptions
	bus  Bus

	src      string
	duration float64
	loaded   bool
	muted    bool
	paused   bool

	pos    float64
	anchor time.Time

	loadGen    uint64
	cancelLoad func() bool
}

// NewSim returns a paused, unloaded element.
func NewSim(opts SimOptions) *Sim {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	return &Sim{opts: opts, paused: true}
}

// Source implements Element.
func (s *Sim) Source() string { return s.src }

// Loaded reports whether metadata for the current source has arrived.
func (s *Sim) Loaded() bool { return s.loaded }

// SetSource implements Element.
func (s *Sim) SetSource(url string) {
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.loadGen++

	hadSource := s.src != ""
	s.src = url
	s.duration = 0
	s.loaded = false
	s.paused = true
	s.pos = 0
	s.anchor = s.opts.Now()

	if hadSource {
		s.bus.Emit(EventEmptied)
	}
	if url == "" {
		return
	}

	gen := s.loadGen
	load := func() {
		if gen != s.loadGen {
			return
		}
		s.cancelLoad = nil
		var d float64
		if s.opts.Resolve != nil {
			var err error
			d, err = s.opts.Resolve(url)
			if err != nil {
				s.bus.Emit(EventError)
				return
			}
		}
		s.duration = d
		s.loaded = true
		s.bus.Emit(EventLoadedMetadata)
	}

	if s.opts.Scheduler == nil {
		load()
		return
	}
	s.cancelLoad = s.opts.Scheduler.AfterFunc(s.opts.LoadDelay, load)
}

// Play implements Element.
func (s *Sim) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.src == "" {
		return ErrNoSource
	}
	if s.opts.BlockAutoplay {
		return ErrAutoplayBlocked
	}
	if !s.paused {
		return nil
	}
	s.anchor = s.opts.Now()
	s.paused = false
	s.bus.Emit(EventPlay)
	return nil
}

// Pause implements Element.
func (s *Sim) Pause() {
	if s.paused {
		return
	}
	s.pos = s.position()
	s.paused = true
	s.bus.Emit(EventPause)
}

// Paused implements Element.
func (s *Sim) Paused() bool { return s.paused }

// CurrentTime implements Element.
func (s *Sim) CurrentTime() float64 { return s.position() }

// Seek implements Element. Targets are clamped to [0, duration] when the
// duration is known; NaN and infinite targets are ignored.
func (s *Sim) Seek(t float64) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return
	}
	if t < 0 {
		t = 0
	}
	if s.duration > 0 && t > s.duration {
		t = s.duration
	}
	s.bus.Emit(EventSeeking)
	s.pos = t
	s.anchor = s.opts.Now()
	s.bus.Emit(EventSeeked)
}

// Duration implements Element.
func (s *Sim) Duration() float64 { return s.duration }

// Muted implements Element.
func (s *Sim) Muted() bool { return s.muted }

// SetMuted implements Element.
func (s *Sim) SetMuted(muted bool) { s.muted = muted }

// On implements Element.
func (s *Sim) On(ev Event, h Handler) *Subscription {
	return s.bus.Subscribe(ev, h)
}

// Listeners returns the number of live subscriptions on the element.
func (s *Sim) Listeners() int { return s.bus.Len() }

// SetRate changes the playback rate without moving the playhead.
func (s *Sim) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	if !s.paused {
		s.pos = s.position()
		s.anchor = s.opts.Now()
	}
	s.opts.Rate = rate
}

// SetBlockAutoplay toggles the autoplay policy.
func (s *Sim) SetBlockAutoplay(block bool) { s.opts.BlockAutoplay = block }

// Tick emits EventTimeUpdate while playing. Reaching the end of a known
// duration pauses the element.
func (s *Sim) Tick() {
	if s.paused || s.src == "" {
		return
	}
	p := s.position()
	if s.duration > 0 && p >= s.duration {
		s.pos = s.duration
		s.paused = true
		s.bus.Emit(EventTimeUpdate)
		s.bus.Emit(EventPause)
		return
	}
	s.bus.Emit(EventTimeUpdate)
}

func (s *Sim) position() float64 {
	if s.paused {
		return s.pos
	}
	p := s.pos + s.opts.Now().Sub(s.anchor).Seconds()*s.opts.Rate
	if s.duration > 0 && p > s.duration {
		p = s.duration
	}
	return p
}
