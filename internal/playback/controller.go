// Package playback keeps a secondary audio stem locked to a primary video
// timeline. The primary is authoritative: every reconciliation re-reads the
// primary's current state and pushes it onto the secondary, never the
// reverse.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"stemsync/internal/media"
)

// DefaultDriftThreshold is the largest primary/secondary offset, in
// seconds, tolerated before the secondary is hard-reset.
const DefaultDriftThreshold = 0.12

var (
	// ErrUnknownRole is returned when selecting a role outside the vocabulary.
	ErrUnknownRole = errors.New("unknown role")

	// ErrRoleUnavailable is returned when selecting a role with no usable stem.
	ErrRoleUnavailable = errors.New("role unavailable")
)

// Observer is notified of controller activity. Implementations must not
// call back into the controller.
type Observer interface {
	RoleSwitched(role Role)
	DriftCorrected(delta float64)
	SecondaryPlayRejected(err error)
	SecondaryLoadFailed(url string)
}

type nopObserver struct{}

func (nopObserver) RoleSwitched(Role)           {}
func (nopObserver) DriftCorrected(float64)      {}
func (nopObserver) SecondaryPlayRejected(error) {}
func (nopObserver) SecondaryLoadFailed(string)  {}

// Options configures a Controller. The zero value uses the defaults.
type Options struct {
	// DriftThreshold in seconds. Default DefaultDriftThreshold.
	DriftThreshold float64
	// Vocabulary of roles. Default DefaultVocabulary().
	Vocabulary []RoleSpec
	Logger     *slog.Logger
	Observer   Observer
}

func (o *Options) setDefaults() {
	if o.DriftThreshold <= 0 {
		o.DriftThreshold = DefaultDriftThreshold
	}
	if len(o.Vocabulary) == 0 {
		o.Vocabulary = DefaultVocabulary()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
}

// RoleStatus is one entry of the role selector.
type RoleStatus struct {
	Role      Role   `json:"role"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
	StemID    string `json:"stemId,omitempty"`
}

// SecondaryState is a snapshot of the secondary audio element.
type SecondaryState struct {
	Source      string  `json:"source"`
	CurrentTime float64 `json:"currentTime"`
	Playing     bool    `json:"playing"`
	Loaded      bool    `json:"loaded"`
}

// Controller mirrors the primary clock's transport onto the secondary
// audio element whenever a stem role is active.
//
// A Controller is not safe for concurrent use. Its owner must serialize
// control calls and element events, as a browser UI thread would.
type Controller struct {
	ctx       context.Context
	clock     *Clock
	audio     media.Element
	assign    Assignment
	threshold float64
	log       *slog.Logger
	obs       Observer

	active  Role
	engaged bool
	// ready is set once the current load's metadata has arrived.
	ready bool
	// gen identifies the latest role selection; stale load callbacks
	// compare against it and bail out.
	gen    uint64
	closed bool

	primary media.Scope
	load    media.Scope
}

// NewController classifies stems and subscribes to the primary clock. It
// starts on the first embedded role of the vocabulary with the secondary
// unloaded and the primary unmuted. ctx bounds secondary Play calls.
func NewController(ctx context.Context, clock *Clock, audio media.Element, stems []Stem, opts Options) *Controller {
	opts.setDefaults()

	c := &Controller{
		ctx:       ctx,
		clock:     clock,
		audio:     audio,
		assign:    Classify(stems, opts.Vocabulary),
		threshold: opts.DriftThreshold,
		log:       opts.Logger,
		obs:       opts.Observer,
	}
	for _, spec := range opts.Vocabulary {
		if spec.Embedded {
			c.active = spec.Role
			break
		}
	}

	c.primary.Add(clock.On(media.EventPlay, c.onPlay))
	c.primary.Add(clock.On(media.EventPause, c.onPause))
	c.primary.Add(clock.On(media.EventSeeking, c.onSeek))
	c.primary.Add(clock.On(media.EventSeeked, c.onSeek))
	c.primary.Add(clock.On(media.EventTimeUpdate, c.onTimeUpdate))

	c.disengage()
	return c
}

// Assignment returns the stem classification.
func (c *Controller) Assignment() Assignment { return c.assign }

// Active returns the selected role.
func (c *Controller) Active() Role { return c.active }

// Engaged reports whether a stem, rather than the primary's own audio, is
// the audible track.
func (c *Controller) Engaged() bool { return c.engaged }

// DriftThreshold returns the correction threshold in seconds.
func (c *Controller) DriftThreshold() float64 { return c.threshold }

// Available reports whether role can be selected given the primary's
// current source.
func (c *Controller) Available(role Role) bool {
	return c.assign.Available(role, c.clock.HasSource())
}

// Roles returns every vocabulary role with its availability. Unavailable
// roles are listed, not omitted.
func (c *Controller) Roles() []RoleStatus {
	specs := c.assign.Roles()
	out := make([]RoleStatus, 0, len(specs))
	for _, spec := range specs {
		rs := RoleStatus{Role: spec.Role, Label: spec.Label, Available: c.Available(spec.Role)}
		if st, ok := c.assign.Stem(spec.Role); ok {
			rs.StemID = st.ID
		}
		out = append(out, rs)
	}
	return out
}

// Secondary returns a snapshot of the secondary element.
func (c *Controller) Secondary() SecondaryState {
	return SecondaryState{
		Source:      c.audio.Source(),
		CurrentTime: c.audio.CurrentTime(),
		Playing:     !c.audio.Paused(),
		Loaded:      c.ready,
	}
}

// Select makes role the audible track. Selecting an embedded role unloads
// the secondary and unmutes the primary. Selecting a stem role mutes the
// primary and loads the stem; once its metadata arrives the stem is
// seeked to the primary's position at that moment and started if the
// primary is playing. Any load still pending from an earlier selection is
// discarded. Selecting the active stem role again reloads it.
func (c *Controller) Select(role Role) error {
	spec, ok := c.assign.Spec(role)
	if !ok {
		return ErrUnknownRole
	}
	if !c.Available(role) {
		return ErrRoleUnavailable
	}

	c.load.Close()
	c.gen++
	c.ready = false

	if spec.Embedded {
		c.disengage()
		c.active = role
		c.obs.RoleSwitched(role)
		c.log.Debug("stem disengaged", slog.String("role", string(role)))
		return nil
	}

	st, _ := c.assign.Stem(role)
	gen := c.gen

	c.audio.Pause()
	c.active = role
	c.engaged = true
	c.clock.SetMuted(true)

	c.load.Add(c.audio.On(media.EventLoadedMetadata, func(media.Event) { c.onLoaded(gen) }))
	c.load.Add(c.audio.On(media.EventError, func(media.Event) { c.onLoadError(gen, st.URL) }))

	c.log.Debug("stem engaging",
		slog.String("role", string(role)),
		slog.String("stem_id", st.ID),
		slog.Float64("primary_time", c.clock.CurrentTime()))
	c.obs.RoleSwitched(role)
	c.audio.SetSource(st.URL)
	return nil
}

// Close releases every subscription and unloads the secondary.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	c.primary.Close()
	c.load.Close()
	c.disengage()
}

func (c *Controller) disengage() {
	c.audio.Pause()
	if c.audio.Source() != "" {
		c.audio.SetSource("")
	}
	c.engaged = false
	c.ready = false
	c.clock.SetMuted(false)
}

// onLoaded seeks the fresh stem to where the primary is now, which may
// differ from where it was when the selection was made.
func (c *Controller) onLoaded(gen uint64) {
	if gen != c.gen || c.closed {
		return
	}
	c.ready = true
	c.clock.SetMuted(true)
	c.seekSecondary(c.clock.CurrentTime())
	if !c.clock.Paused() {
		c.playSecondary()
	}
}

func (c *Controller) onLoadError(gen uint64, url string) {
	if gen != c.gen || c.closed {
		return
	}
	c.log.Warn("stem load failed", slog.String("url", url), slog.String("role", string(c.active)))
	c.obs.SecondaryLoadFailed(url)
}

func (c *Controller) synced() bool {
	return c.engaged && c.ready && !c.closed
}

func (c *Controller) onPlay(media.Event) {
	if !c.synced() {
		return
	}
	c.seekSecondary(c.clock.CurrentTime())
	c.playSecondary()
}

func (c *Controller) onPause(media.Event) {
	if !c.synced() {
		return
	}
	c.seekSecondary(c.clock.CurrentTime())
	c.audio.Pause()
}

func (c *Controller) onSeek(media.Event) {
	if !c.synced() {
		return
	}
	c.seekSecondary(c.clock.CurrentTime())
	if !c.clock.Paused() {
		c.playSecondary()
	}
}

func (c *Controller) onTimeUpdate(media.Event) {
	if !c.synced() {
		return
	}
	target := c.clampSecondary(c.clock.CurrentTime())
	delta := math.Abs(target - c.audio.CurrentTime())
	if delta > c.threshold {
		c.audio.Seek(target)
		c.obs.DriftCorrected(delta)
		c.log.Debug("drift corrected", slog.Float64("delta", delta), slog.Float64("primary_time", target))
	}
}

func (c *Controller) clampSecondary(t float64) float64 {
	if d := c.audio.Duration(); d > 0 && t > d {
		return d
	}
	return t
}

func (c *Controller) seekSecondary(t float64) {
	c.audio.Seek(c.clampSecondary(t))
}

// playSecondary starts the secondary. Rejections are logged and dropped;
// the primary keeps playing either way.
func (c *Controller) playSecondary() {
	if err := c.audio.Play(c.ctx); err != nil {
		c.log.Info("secondary play rejected",
			slog.String("role", string(c.active)),
			slog.String("error", err.Error()))
		c.obs.SecondaryPlayRejected(err)
	}
}
