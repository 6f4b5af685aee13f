package session

import (
	"errors"
	"log/slog"
	"time"

	"stemsync/internal/annotation"
	"stemsync/internal/playback"
)

// DefaultTickInterval is how often a playing session emits timeupdate,
// close to what browsers do.
const DefaultTickInterval = 250 * time.Millisecond

// ErrMissingMediaID is returned when mounting a MediaSource without an id.
var ErrMissingMediaID = errors.New("media id is required")

// Options configures a Service. The zero value uses the defaults.
type Options struct {
	// DriftThreshold in seconds. Default playback.DefaultDriftThreshold.
	DriftThreshold float64
	// TickInterval between timeupdate events. Default DefaultTickInterval;
	// negative disables the ticker (sessions are then ticked by hand).
	TickInterval time.Duration
	// LoadDelay simulates stem load latency. Zero loads synchronously.
	LoadDelay time.Duration
	// Comments is where comment logs persist. Default an in-memory store.
	Comments   annotation.Store
	Vocabulary []playback.RoleSpec
	Observer   playback.Observer
	Logger     *slog.Logger
}

func (o *Options) setDefaults() {
	if o.TickInterval == 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.Comments == nil {
		o.Comments = annotation.NewMemoryStore()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// Service mounts and unmounts playback sessions and tracks them in a
// Repository.
type Service struct {
	repo Repository
	opts Options
}

// NewService returns a Service that registers sessions in repo.
func NewService(repo Repository, opts Options) *Service {
	opts.setDefaults()
	return &Service{repo: repo, opts: opts}
}

// Mount creates a session for src. A src without a primary video URL is
// mounted in the "no source" state.
func (s *Service) Mount(src MediaSource) (*Session, error) {
	if src.ID == "" {
		return nil, ErrMissingMediaID
	}
	if _, exists := s.repo.Get(src.ID); exists {
		return nil, ErrSessionExists
	}

	tick := s.opts.TickInterval
	if tick < 0 {
		tick = 0
	}
	sess := newSession(src, sessionConfig{
		tickInterval: tick,
		loadDelay:    s.opts.LoadDelay,
		comments:     s.opts.Comments,
		log:          s.opts.Logger,
		controller: playback.Options{
			DriftThreshold: s.opts.DriftThreshold,
			Vocabulary:     s.opts.Vocabulary,
			Observer:       s.opts.Observer,
		},
	})

	if err := s.repo.Add(sess); err != nil {
		sess.Close()
		return nil, err
	}

	s.opts.Logger.Info("session mounted",
		slog.String("media_id", string(src.ID)),
		slog.Bool("has_source", src.PrimaryVideoURL != ""),
		slog.Int("stems", len(src.Stems)))
	return sess, nil
}

// Session returns the mounted session for id.
func (s *Service) Session(id MediaID) (*Session, error) {
	sess, ok := s.repo.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Unmount closes and forgets the session for id.
func (s *Service) Unmount(id MediaID) error {
	sess, ok := s.repo.Remove(id)
	if !ok {
		return ErrSessionNotFound
	}
	sess.Close()
	s.opts.Logger.Info("session unmounted", slog.String("media_id", string(id)))
	return nil
}

// ActiveSessionCount returns the number of mounted sessions.
func (s *Service) ActiveSessionCount() int {
	return s.repo.ActiveCount()
}

// Close unmounts every session.
func (s *Service) Close() {
	for _, id := range s.repo.List() {
		_ = s.Unmount(id)
	}
}
