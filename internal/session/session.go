package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"stemsync/internal/annotation"
	"stemsync/internal/media"
	"stemsync/internal/playback"
)

const watcherBuffer = 8

// sessionConfig is what a Session needs from the Service that mounts it.
type sessionConfig struct {
	tickInterval time.Duration
	loadDelay    time.Duration
	comments     annotation.Store
	log          *slog.Logger
	controller   playback.Options
}

// Session is one mounted MediaSource: a primary clock, a stem controller
// and a comment log. Every control call, timer callback and media event
// runs under the session's lock, so the engine sees a single thread.
type Session struct {
	mu  sync.Mutex
	src MediaSource
	log *slog.Logger

	video    *media.Sim
	audio    *media.Sim
	clock    *playback.Clock
	ctrl     *playback.Controller
	comments *annotation.Log

	watchers map[chan View]struct{}
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func newSession(src MediaSource, cfg sessionConfig) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		src:      src,
		log:      cfg.log.With(slog.String("media_id", string(src.ID))),
		watchers: make(map[chan View]struct{}),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	resolve := durationResolver(src)
	s.video = media.NewSim(media.SimOptions{Resolve: resolve})
	audioOpts := media.SimOptions{Resolve: resolve, LoadDelay: cfg.loadDelay}
	if cfg.loadDelay > 0 {
		audioOpts.Scheduler = media.TimerScheduler(s.deferred)
	}
	s.audio = media.NewSim(audioOpts)

	if src.PrimaryVideoURL != "" {
		s.video.SetSource(src.PrimaryVideoURL)
	}
	s.clock = playback.NewClock(s.video)

	ctrlOpts := cfg.controller
	ctrlOpts.Logger = s.log
	s.ctrl = playback.NewController(ctx, s.clock, s.audio, src.Stems, ctrlOpts)
	for _, amb := range s.ctrl.Assignment().Ambiguous {
		roles := make([]string, 0, len(amb.Roles))
		for _, r := range amb.Roles {
			roles = append(roles, string(r))
		}
		s.log.Warn("stem matches several roles",
			slog.String("stem_id", amb.StemID),
			slog.String("roles", strings.Join(roles, ",")))
	}

	s.comments = annotation.Open(ctx, cfg.comments, string(src.ID), s.clock, annotation.Options{Logger: s.log})

	if cfg.tickInterval > 0 {
		go s.run(ctx, cfg.tickInterval)
	} else {
		close(s.done)
	}
	return s
}

func durationResolver(src MediaSource) media.DurationResolver {
	durations := map[string]float64{src.PrimaryVideoURL: src.Duration}
	for _, st := range src.Stems {
		if st.URL != "" {
			durations[st.URL] = st.Duration
		}
	}
	return func(url string) (float64, error) {
		return durations[url], nil
	}
}

// run drives timeupdate ticks until the session closes.
func (s *Session) run(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick()
		}
	}
}

// deferred runs a timer callback under the session lock.
func (s *Session) deferred(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	f()
	s.notifyLocked()
}

// ID returns the media identity the session is mounted for.
func (s *Session) ID() MediaID { return s.src.ID }

// Source returns the configuration the session was mounted with.
func (s *Session) Source() MediaSource { return s.src }

// Tick advances media events by one timeupdate.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	wasPlaying := !s.video.Paused()
	s.video.Tick()
	s.audio.Tick()
	if wasPlaying {
		s.notifyLocked()
	}
}

// View returns the current rendered state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Play starts the primary timeline. Without a primary source it does
// nothing.
func (s *Session) Play(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clock.HasSource() && !s.closed {
		if err := s.clock.Play(ctx); err != nil {
			return s.viewLocked(), fmt.Errorf("play: %w", err)
		}
		s.notifyLocked()
	}
	return s.viewLocked(), nil
}

// Pause stops the primary timeline.
func (s *Session) Pause() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clock.HasSource() && !s.closed {
		s.clock.Pause()
		s.notifyLocked()
	}
	return s.viewLocked()
}

// Seek moves the primary timeline to t seconds.
func (s *Session) Seek(t float64) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clock.HasSource() && !s.closed {
		s.clock.Seek(t)
		s.notifyLocked()
	}
	return s.viewLocked()
}

// SelectRole switches the audible track.
func (s *Session) SelectRole(role playback.Role) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clock.HasSource() && !s.closed {
		if err := s.ctrl.Select(role); err != nil {
			return s.viewLocked(), err
		}
		s.notifyLocked()
	}
	return s.viewLocked(), nil
}

// AddComment appends a comment anchored at the primary's current time.
// added is false when the message was blank.
func (s *Session) AddComment(ctx context.Context, author, message string) (annotation.Comment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, added, err := s.comments.Add(ctx, author, message)
	if err != nil {
		s.log.Error("persist comment log failed", slog.String("error", err.Error()))
	}
	if added {
		s.notifyLocked()
	}
	return c, added, err
}

// Comments returns the comment log in creation order.
func (s *Session) Comments() []annotation.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comments.Comments()
}

// ActivateComment seeks the primary to the comment's anchor.
func (s *Session) ActivateComment(id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.comments.ActivateByID(id); err != nil {
		return s.viewLocked(), err
	}
	s.notifyLocked()
	return s.viewLocked(), nil
}

// Watch subscribes to state changes. The channel receives the current
// view immediately and a new view after every change. Slow receivers miss
// intermediate views. Call cancel to unsubscribe; the channel is closed
// when the subscription ends or the session closes.
func (s *Session) Watch() (views <-chan View, cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan View, watcherBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.watchers[ch] = struct{}{}
	ch <- s.viewLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.watchers[ch]; ok {
				delete(s.watchers, ch)
				close(ch)
			}
		})
	}
}

// Close stops the ticker, releases the engine and ends all watches.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.ctrl.Close()
	for ch := range s.watchers {
		delete(s.watchers, ch)
		close(ch)
	}
	s.mu.Unlock()

	s.cancel()
	<-s.done
}

func (s *Session) viewLocked() View {
	return View{
		MediaID:       s.src.ID,
		HasSource:     s.clock.HasSource(),
		PlaybackState: s.clock.State(),
		Muted:         s.clock.Muted(),
		ActiveRole:    s.ctrl.Active(),
		Engaged:       s.ctrl.Engaged(),
		Secondary:     s.ctrl.Secondary(),
		Roles:         s.ctrl.Roles(),
		CommentCount:  s.comments.Len(),
	}
}

func (s *Session) notifyLocked() {
	if len(s.watchers) == 0 {
		return
	}
	v := s.viewLocked()
	for ch := range s.watchers {
		select {
		case ch <- v:
		default:
		}
	}
}
