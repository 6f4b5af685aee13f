package playback

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"stemsync/internal/media"
	"stemsync/internal/media/mediatest"
)

const eps = 1e-6

type recordingObserver struct {
	switches     []Role
	corrections  []float64
	rejections   int
	loadFailures []string
}

func (o *recordingObserver) RoleSwitched(r Role)             { o.switches = append(o.switches, r) }
func (o *recordingObserver) DriftCorrected(d float64)        { o.corrections = append(o.corrections, d) }
func (o *recordingObserver) SecondaryPlayRejected(err error) { o.rejections++ }
func (o *recordingObserver) SecondaryLoadFailed(url string)  { o.loadFailures = append(o.loadFailures, url) }

type rig struct {
	clock   *mediatest.Clock
	sched   *mediatest.Scheduler
	video   *media.Sim
	audio   *media.Sim
	primary *Clock
	ctrl    *Controller
	obs     *recordingObserver
}

func resolver(durations map[string]float64) media.DurationResolver {
	return func(url string) (float64, error) {
		d, ok := durations[url]
		if !ok {
			return 0, errors.New("404")
		}
		return d, nil
	}
}

func newRig(t *testing.T, stems []Stem, durations map[string]float64) *rig {
	t.Helper()
	clock := mediatest.NewClock()
	sched := &mediatest.Scheduler{}
	durations["video.mp4"] = 100

	video := media.NewSim(media.SimOptions{Now: clock.Now, Resolve: resolver(durations)})
	video.SetSource("video.mp4")
	audio := media.NewSim(media.SimOptions{Now: clock.Now, Scheduler: sched, Resolve: resolver(durations)})

	primary := NewClock(video)
	obs := &recordingObserver{}
	ctrl := NewController(context.Background(), primary, audio, stems, Options{Observer: obs})
	t.Cleanup(ctrl.Close)

	return &rig{clock: clock, sched: sched, video: video, audio: audio, primary: primary, ctrl: ctrl, obs: obs}
}

func defaultStems() []Stem {
	return []Stem{
		{ID: "full", Label: "Full orchestra", URL: "A.mp3"},
		{ID: "piano-only", Label: "Piano", URL: "B.mp3"},
		{ID: "viola-section", Label: "Violas", URL: "C.mp3"},
	}
}

func defaultDurations() map[string]float64 {
	return map[string]float64{"A.mp3": 100, "B.mp3": 100, "C.mp3": 100}
}

func (r *rig) engage(t *testing.T, role Role) {
	t.Helper()
	if err := r.ctrl.Select(role); err != nil {
		t.Fatalf("Select(%s): %v", role, err)
	}
	r.sched.RunAll()
}

func TestController_InitialState(t *testing.T) {
	r := newRig(t, defaultStems(), defaultDurations())

	if r.ctrl.Active() != RoleFullMix {
		t.Errorf("active = %q, want full", r.ctrl.Active())
	}
	if r.ctrl.Engaged() {
		t.Error("should not start engaged")
	}
	if r.audio.Source() != "" || r.primary.Muted() {
		t.Errorf("audio source %q, primary muted %v", r.audio.Source(), r.primary.Muted())
	}
}

func TestController_SelectPianoWhilePlaying(t *testing.T) {
	stems := []Stem{{ID: "full", URL: "A.mp3"}, {ID: "piano-only", URL: "B.mp3"}}
	r := newRig(t, stems, map[string]float64{"A.mp3": 100, "B.mp3": 100})

	r.primary.Seek(42)
	if err := r.primary.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if err := r.ctrl.Select(RolePiano); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if r.audio.Source() != "B.mp3" {
		t.Errorf("audio source = %q, want B.mp3", r.audio.Source())
	}
	if !r.primary.Muted() {
		t.Error("primary should be muted once a stem is engaged")
	}
	if !r.audio.Paused() {
		t.Error("audio should wait for metadata before playing")
	}

	r.sched.RunAll()

	if got := r.audio.CurrentTime(); math.Abs(got-42) > eps {
		t.Errorf("audio time = %v, want 42", got)
	}
	if r.audio.Paused() {
		t.Error("audio should be playing after metadata")
	}
	if !r.primary.State().IsPlaying {
		t.Error("primary should still be playing")
	}
}

func TestController_SelectClampsToShorterStem(t *testing.T) {
	stems := []Stem{{ID: "piano-only", URL: "B.mp3"}}
	r := newRig(t, stems, map[string]float64{"B.mp3": 30})

	r.primary.Seek(42)
	_ = r.primary.Play(context.Background())
	r.engage(t, RolePiano)

	if got := r.audio.CurrentTime(); got != 30 {
		t.Errorf("audio time = %v, want 30", got)
	}

	// Past the stem's end the clamped target matches, so no correction loops.
	r.clock.Advance(time.Second)
	r.video.Tick()
	if len(r.obs.corrections) != 0 {
		t.Errorf("expected no drift corrections past stem end, got %v", r.obs.corrections)
	}
}

func TestController_SwapStemsPreservesPositionAndPlayState(t *testing.T) {
	r := newRig(t, defaultStems(), defaultDurations())

	r.primary.Seek(42)
	_ = r.primary.Play(context.Background())
	r.engage(t, RolePiano)

	r.clock.Advance(5 * time.Second)
	if err := r.ctrl.Select(RoleViola); err != nil {
		t.Fatalf("Select(viola): %v", err)
	}
	// Metadata arrives late; the primary has moved on in the meantime.
	r.clock.Advance(200 * time.Millisecond)
	r.sched.RunAll()

	if r.audio.Source() != "C.mp3" {
		t.Fatalf("audio source = %q, want C.mp3", r.audio.Source())
	}
	p, s := r.primary.CurrentTime(), r.audio.CurrentTime()
	if math.Abs(p-47.2) > eps {
		t.Fatalf("primary time = %v, want 47.2", p)
	}
	if math.Abs(p-s) > eps {
		t.Errorf("audio time = %v, want fresh primary time %v", s, p)
	}
	if r.audio.Paused() || r.primary.Paused() {
		t.Errorf("both should be playing: audio paused %v primary paused %v", r.audio.Paused(), r.primary.Paused())
	}
}

func TestController_SelectFullMixUnloads(t *testing.T) {
	r := newRig(t, defaultStems(), defaultDurations())
	_ = r.primary.Play(context.Background())
	r.engage(t, RolePiano)

	if err := r.ctrl.Select(RoleFullMix); err != nil {
		t.Fatalf("Select(full): %v", err)
	}

	if r.audio.Source() != "" {
		t.Errorf("audio source = %q, want empty", r.audio.Source())
	}
	if r.primary.Muted() {
		t.Error("primary should be unmuted")
	}
	if r.ctrl.Engaged() {
		t.Error("controller should be idle")
	}
	if r.primary.Paused() {
		t.Error("primary playback should continue")
	}
}

func TestController_PendingLoadDiscardedBySwitch(t *testing.T) {
	r := newRig(t, defaultStems(), defaultDurations())
	_ = r.primary.Play(context.Background())

	if err := r.ctrl.Select(RolePiano); err != nil {
		t.Fatal(err)
	}
	if err := r.ctrl.Select(RoleFullMix); err != nil {
		t.Fatal(err)
	}
	r.sched.RunAll()

	if r.audio.Source() != "" || !r.audio.Paused() {
		t.Errorf("stale load took effect: source %q paused %v", r.audio.Source(), r.audio.Paused())
	}
	if r.primary.Muted() {
		t.Error("primary should be unmuted")
	}
}

func TestController_TransportMirroring(t *testing.T) {
	r := newRig(t, defaultStems(), defaultDurations())
	r.engage(t, RolePiano)

	_ = r.primary.Play(context.Background())
	if r.audio.Paused() {
		t.Fatal("audio should follow primary play")
	}

	r.clock.Advance(3 * time.Second)
	r.primary.Pause()
	if !r.audio.Paused() {
		t.Error("audio should follow primary pause")
	}
	if math.Abs(r.audio.CurrentTime()-r.primary.CurrentTime()) > eps {
		t.Errorf("audio %v primary %v after pause", r.audio.CurrentTime(), r.primary.CurrentTime())
	}
}

func TestController_SeekSettles(t *testing.T) {
	for _, playing := range []bool{false, true} {
		r := newRig(t, defaultStems(), defaultDurations())
		r.engage(t, RolePiano)
		if playing {
			_ = r.primary.Play(context.Background())
		}

		for _, target := range []float64{0, 12.5, 63, 99.99, 100} {
			r.primary.Seek(target)
			if got := r.primary.CurrentTime(); math.Abs(got-target) > 0.01 {
				t.Errorf("playing=%v seek %v: primary at %v", playing, target, got)
			}
			if got := r.audio.CurrentTime(); math.Abs(got-target) > 0.01 {
				t.Errorf("playing=%v seek %v: audio at %v", playing, target, got)
			}
			if r.primary.Paused() == playing {
				t.Errorf("playing=%v seek %v: play state changed", playing, target)
			}
			if r.audio.Paused() == playing {
				t.Errorf("playing=%v seek %v: audio play state = %v", playing, target, !r.audio.Paused())
			}
		}
	}
}

func TestController_DriftCorrection(t *testing.T) {
	r := newRig(t, defaultStems(), defaultDurations())
	_ = r.primary.Play(context.Background())
	r.engage(t, RolePiano)

	r.audio.SetRate(1.02)
	r.clock.Advance(2 * time.Second)
	r.video.Tick()
	if len(r.obs.corrections) != 0 {
		t.Fatalf("0.04s drift should be tolerated, got corrections %v", r.obs.corrections)
	}

	r.audio.SetRate(1.1)
	r.clock.Advance(2 * time.Second)
	if delta := math.Abs(r.primary.CurrentTime() - r.audio.CurrentTime()); delta <= DefaultDriftThreshold {
		t.Fatalf("setup: expected drift above threshold, got %v", delta)
	}
	r.video.Tick()

	if delta := r.primary.CurrentTime() - r.audio.CurrentTime(); delta != 0 {
		t.Errorf("post-tick delta = %v, want 0", delta)
	}
	if len(r.obs.corrections) != 1 {
		t.Errorf("expected 1 correction, got %v", r.obs.corrections)
	}
}

func TestController_CustomDriftThreshold(t *testing.T) {
	clock := mediatest.NewClock()
	video := media.NewSim(media.SimOptions{Now: clock.Now})
	video.SetSource("video.mp4")
	audio := media.NewSim(media.SimOptions{Now: clock.Now})
	primary := NewClock(video)
	obs := &recordingObserver{}
	ctrl := NewController(context.Background(), primary, audio, defaultStems(), Options{DriftThreshold: 0.5, Observer: obs})
	defer ctrl.Close()

	_ = primary.Play(context.Background())
	if err := ctrl.Select(RolePiano); err != nil {
		t.Fatal(err)
	}
	audio.SetRate(1.1)
	clock.Advance(2 * time.Second)
	video.Tick()

	if len(obs.corrections) != 0 {
		t.Errorf("0.2s drift under a 0.5s threshold should not correct, got %v", obs.corrections)
	}
	if ctrl.DriftThreshold() != 0.5 {
		t.Errorf("DriftThreshold = %v", ctrl.DriftThreshold())
	}
}

func TestController_AutoplayRejectionIsSwallowed(t *testing.T) {
	r := newRig(t, defaultStems(), defaultDurations())
	r.audio.SetBlockAutoplay(true)
	_ = r.primary.Play(context.Background())

	if err := r.ctrl.Select(RolePiano); err != nil {
		t.Fatalf("Select should not surface playback errors: %v", err)
	}
	r.sched.RunAll()

	if r.obs.rejections != 1 {
		t.Errorf("expected 1 rejection, got %d", r.obs.rejections)
	}
	if r.primary.Paused() {
		t.Error("primary must keep playing")
	}
	if !r.audio.Paused() {
		t.Error("blocked audio should stay paused")
	}
}

func TestController_LoadFailureStaysSelectable(t *testing.T) {
	stems := []Stem{{ID: "piano", URL: "missing.mp3"}}
	r := newRig(t, stems, map[string]float64{})
	_ = r.primary.Play(context.Background())

	r.engage(t, RolePiano)
	if len(r.obs.loadFailures) != 1 {
		t.Fatalf("expected 1 load failure, got %v", r.obs.loadFailures)
	}
	if r.ctrl.Active() != RolePiano || !r.ctrl.Engaged() {
		t.Errorf("role should stay active: active=%q engaged=%v", r.ctrl.Active(), r.ctrl.Engaged())
	}

	// Re-selecting retries the load.
	if err := r.ctrl.Select(RolePiano); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if r.sched.Pending() != 1 {
		t.Errorf("expected a new pending load, got %d", r.sched.Pending())
	}
}

func TestController_SelectErrors(t *testing.T) {
	stems := []Stem{{ID: "piano", URL: "B.mp3"}}
	r := newRig(t, stems, map[string]float64{"B.mp3": 100})

	if err := r.ctrl.Select("tuba"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
	if err := r.ctrl.Select(RoleViola); !errors.Is(err, ErrRoleUnavailable) {
		t.Errorf("expected ErrRoleUnavailable, got %v", err)
	}
	if r.ctrl.Active() != RoleFullMix {
		t.Errorf("failed select changed active role to %q", r.ctrl.Active())
	}
}

func TestController_RolesListsUnavailable(t *testing.T) {
	stems := []Stem{{ID: "piano", URL: "B.mp3"}}
	r := newRig(t, stems, map[string]float64{"B.mp3": 100})

	roles := r.ctrl.Roles()
	if len(roles) != 3 {
		t.Fatalf("expected 3 roles, got %d", len(roles))
	}
	want := map[Role]bool{RoleFullMix: true, RolePiano: true, RoleViola: false}
	for _, rs := range roles {
		if rs.Available != want[rs.Role] {
			t.Errorf("role %s available = %v, want %v", rs.Role, rs.Available, want[rs.Role])
		}
	}
}

func TestController_CloseReleasesListeners(t *testing.T) {
	r := newRig(t, defaultStems(), defaultDurations())
	r.engage(t, RolePiano)
	if err := r.ctrl.Select(RoleViola); err != nil {
		t.Fatal(err)
	}

	r.ctrl.Close()

	if n := r.video.Listeners(); n != 0 {
		t.Errorf("video listeners = %d, want 0", n)
	}
	if n := r.audio.Listeners(); n != 0 {
		t.Errorf("audio listeners = %d, want 0", n)
	}
	if r.audio.Source() != "" {
		t.Errorf("audio source = %q after close", r.audio.Source())
	}
}

func TestController_SwitchesDoNotLeakListeners(t *testing.T) {
	r := newRig(t, defaultStems(), defaultDurations())
	base := r.audio.Listeners()

	for i := 0; i < 5; i++ {
		r.engage(t, RolePiano)
		r.engage(t, RoleViola)
	}
	if n := r.audio.Listeners(); n != base+2 {
		t.Errorf("audio listeners = %d, want %d", n, base+2)
	}
}
