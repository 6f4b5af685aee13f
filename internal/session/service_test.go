package session

import (
	"errors"
	"testing"

	"stemsync/internal/annotation"
	"stemsync/internal/playback"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(NewInMemoryRepository(), Options{TickInterval: -1})
	t.Cleanup(svc.Close)
	return svc
}

func testSource(id MediaID) MediaSource {
	return MediaSource{
		ID:              id,
		PrimaryVideoURL: "video.mp4",
		Duration:        100,
		Stems: []playback.Stem{
			{ID: "full", Label: "Full orchestra", URL: "A.mp3", Duration: 100},
			{ID: "piano-only", Label: "Piano", URL: "B.mp3", Duration: 100},
			{ID: "viola-section", Label: "Violas", URL: "C.mp3", Duration: 100},
		},
	}
}

func TestService_Mount(t *testing.T) {
	svc := newTestService(t)

	sess, err := svc.Mount(testSource("m1"))
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if sess.ID() != "m1" {
		t.Errorf("expected id m1, got %s", sess.ID())
	}
	if svc.ActiveSessionCount() != 1 {
		t.Errorf("expected 1 active session, got %d", svc.ActiveSessionCount())
	}

	v := sess.View()
	if !v.HasSource || v.Duration != 100 {
		t.Errorf("unexpected initial view: %+v", v)
	}
	if v.ActiveRole != playback.RoleFullMix || v.Engaged || v.Muted {
		t.Errorf("expected full mix, unmuted, not engaged; got %+v", v)
	}
	if v.Secondary.Source != "" {
		t.Errorf("expected secondary unloaded, got %q", v.Secondary.Source)
	}
}

func TestService_Mount_errors(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Mount(MediaSource{}); !errors.Is(err, ErrMissingMediaID) {
		t.Errorf("expected ErrMissingMediaID, got %v", err)
	}
	if _, err := svc.Mount(testSource("m1")); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if _, err := svc.Mount(testSource("m1")); !errors.Is(err, ErrSessionExists) {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}
}

func TestService_Unmount(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Mount(testSource("m1")); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	if err := svc.Unmount("m1"); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if _, err := svc.Session("m1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after unmount, got %v", err)
	}
	if err := svc.Unmount("m1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second unmount, got %v", err)
	}
}

func TestService_CommentsSurviveRemount(t *testing.T) {
	store := annotation.NewMemoryStore()
	svc := NewService(NewInMemoryRepository(), Options{TickInterval: -1, Comments: store})
	t.Cleanup(svc.Close)

	sess, err := svc.Mount(testSource("m1"))
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	sess.Seek(12)
	if _, added, err := sess.AddComment(t.Context(), "Dana", "Nice entry"); err != nil || !added {
		t.Fatalf("AddComment: added=%v err=%v", added, err)
	}
	if err := svc.Unmount("m1"); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	again, err := svc.Mount(testSource("m1"))
	if err != nil {
		t.Fatalf("remount: %v", err)
	}
	got := again.Comments()
	if len(got) != 1 || got[0].Message != "Nice entry" || got[0].AnchorTime != 12 {
		t.Errorf("unexpected comments after remount: %+v", got)
	}

	other, err := svc.Mount(testSource("m2"))
	if err != nil {
		t.Fatalf("Mount m2: %v", err)
	}
	if n := len(other.Comments()); n != 0 {
		t.Errorf("expected m2 to have no comments, got %d", n)
	}
}

func TestService_Close(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), Options{TickInterval: -1})
	for _, id := range []MediaID{"a", "b"} {
		if _, err := svc.Mount(testSource(id)); err != nil {
			t.Fatalf("Mount %s: %v", id, err)
		}
	}

	svc.Close()
	if n := svc.ActiveSessionCount(); n != 0 {
		t.Errorf("expected no sessions after Close, got %d", n)
	}
}
