package narration

import (
	"errors"
	"reflect"
	"testing"
)

type fakeSynth struct {
	err     error
	spoken  []string
	stopped int
}

func (f *fakeSynth) Speak(text string, done func()) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.spoken = append(f.spoken, text)
	return func() { f.stopped++ }, nil
}

type fakePlayer struct {
	available map[string]bool
	played    []string
	stopped   int
}

func (f *fakePlayer) Play(name string, done func()) (func(), error) {
	if !f.available[name] {
		return nil, errors.New("asset not found")
	}
	f.played = append(f.played, name)
	return func() { f.stopped++ }, nil
}

func TestSelectorSpeechWhenOnline(t *testing.T) {
	synth := &fakeSynth{}
	player := &fakePlayer{available: map[string]bool{"mona_lisa.mp3": true}}

	s := NewSelector(synth, player)
	n := s.Start("Mona Lisa", "A celebrated portrait.", true)

	if n.Mode != ModeSpeech {
		t.Errorf("expected speech mode, got %s", n.Mode)
	}
	if len(synth.spoken) != 1 || synth.spoken[0] != "A celebrated portrait." {
		t.Errorf("unexpected spoken text: %v", synth.spoken)
	}
	if len(player.played) != 0 {
		t.Errorf("player must not run when speech succeeds: %v", player.played)
	}
	if s.Active() != n {
		t.Error("started narration must be active")
	}
}

func TestSelectorAudioWhenOffline(t *testing.T) {
	synth := &fakeSynth{}
	player := &fakePlayer{available: map[string]bool{"mona_lisa.mp3": true}}

	s := NewSelector(synth, player)
	n := s.Start("Mona Lisa", "A celebrated portrait.", false)

	if n.Mode != ModeAudio {
		t.Errorf("expected audio mode, got %s", n.Mode)
	}
	if n.Asset != "mona_lisa.mp3" {
		t.Errorf("expected underscored variant, got %s", n.Asset)
	}
	if len(synth.spoken) != 0 {
		t.Errorf("synthesizer must not run offline: %v", synth.spoken)
	}
}

func TestSelectorTriesVariantsInOrder(t *testing.T) {
	// Only the space-stripped variant exists.
	player := &fakePlayer{available: map[string]bool{"monalisa.mp3": true}}

	s := NewSelector(nil, player)
	n := s.Start("Mona Lisa", "", false)

	if n.Mode != ModeAudio || n.Asset != "monalisa.mp3" {
		t.Errorf("expected monalisa.mp3, got %s/%s", n.Mode, n.Asset)
	}
}

func TestSelectorSpeechFailureFallsBackToAudio(t *testing.T) {
	synth := &fakeSynth{err: errors.New("no speech device")}
	player := &fakePlayer{available: map[string]bool{"the_scream.mp3": true}}

	s := NewSelector(synth, player)
	n := s.Start("The Scream", "A figure on a bridge.", true)

	if n.Mode != ModeAudio || n.Asset != "the_scream.mp3" {
		t.Errorf("expected audio fallback, got %s/%s", n.Mode, n.Asset)
	}
}

func TestSelectorNothingPlays(t *testing.T) {
	s := NewSelector(nil, &fakePlayer{})
	n := s.Start("Mona Lisa", "", false)

	if n.Mode != ModeNone {
		t.Errorf("expected silent handle, got %s", n.Mode)
	}
	if s.Active() != nil {
		t.Error("silent handle must not be active")
	}
	// The silent handle is still safe to stop.
	n.Stop()
}

func TestSelectorCancelsPrevious(t *testing.T) {
	synth := &fakeSynth{}
	s := NewSelector(synth, nil)

	first := s.Start("Mona Lisa", "first", true)
	second := s.Start("Starry Night", "second", true)

	if synth.stopped != 1 {
		t.Errorf("expected previous narration stopped once, got %d", synth.stopped)
	}
	if s.Active() != second {
		t.Error("second narration must be active")
	}

	// Stopping the stale handle again is a no-op.
	first.Stop()
	if synth.stopped != 1 {
		t.Errorf("stale stop must not fire cancel again, got %d", synth.stopped)
	}
	if s.Active() != second {
		t.Error("stale stop must not release the active narration")
	}
}

func TestNarrationStopIsIdempotent(t *testing.T) {
	synth := &fakeSynth{}
	s := NewSelector(synth, nil)

	n := s.Start("Mona Lisa", "text", true)
	n.Stop()
	n.Stop()

	if synth.stopped != 1 {
		t.Errorf("expected a single cancel, got %d", synth.stopped)
	}
	if s.Active() != nil {
		t.Error("stopped narration must not stay active")
	}
}

// completionPlayer records the done callback so the test can fire it
// after Play returns, the way a real audio device would.
type completionPlayer struct {
	done func()
}

func (p *completionPlayer) Play(name string, done func()) (func(), error) {
	p.done = done
	return func() {}, nil
}

func TestPlaybackCompletionReleasesNarration(t *testing.T) {
	player := &completionPlayer{}
	s := NewSelector(nil, player)

	n := s.Start("Mona Lisa", "", false)
	if s.Active() != n {
		t.Fatal("started narration must be active")
	}

	finished := make(chan struct{})
	go func() {
		player.done()
		close(finished)
	}()
	<-finished

	if s.Active() != nil {
		t.Error("completed narration must not stay active")
	}
	// Stop after completion stays safe.
	n.Stop()
}

func TestAudioVariants(t *testing.T) {
	tests := []struct {
		label    string
		expected []string
	}{
		{"Mona Lisa", []string{"mona_lisa.mp3", "monalisa.mp3", "mona lisa.mp3"}},
		{"Guernica", []string{"guernica.mp3"}},
		{"  The   Scream ", []string{"the_scream.mp3", "thescream.mp3", "the   scream.mp3"}},
	}

	for _, tt := range tests {
		if got := AudioVariants(tt.label); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("AudioVariants(%q) = %v, want %v", tt.label, got, tt.expected)
		}
	}
}
