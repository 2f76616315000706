package narration

import (
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Mode says how a narration is being produced.
type Mode string

const (
	// ModeSpeech synthesizes the description text.
	ModeSpeech Mode = "speech"
	// ModeAudio plays a pre-recorded local asset.
	ModeAudio Mode = "audio"
	// ModeNone is the silent no-op handle when nothing could play.
	ModeNone Mode = "none"
)

// Synthesizer speaks text aloud. The speech facility is an external
// collaborator; done fires when the utterance finishes and must be
// invoked asynchronously, never from inside Speak itself.
type Synthesizer interface {
	Speak(text string, done func()) (stop func(), err error)
}

// Player plays a named local audio asset; done fires when playback
// finishes and must be invoked asynchronously, never from inside Play
// itself. An error means the asset could not start, and the selector
// moves on to the next filename variant.
type Player interface {
	Play(name string, done func()) (stop func(), err error)
}

// Narration is a handle on one active output. Stop is idempotent.
type Narration struct {
	ID    string
	Mode  Mode
	Asset string // audio asset name when Mode == ModeAudio

	sel    *Selector
	once   sync.Once
	cancel func()
}

func (n *Narration) Stop() {
	n.once.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
	})
	if n.sel != nil {
		n.sel.release(n)
	}
}

// Selector chooses between speech synthesis and local audio playback.
// At most one narration is active; starting a new one cancels the
// previous output first.
type Selector struct {
	synth  Synthesizer
	player Player

	mu     sync.Mutex
	active *Narration
}

func NewSelector(synth Synthesizer, player Player) *Selector {
	return &Selector{
		synth:  synth,
		player: player,
	}
}

// Start narrates the description for label. Online, the text is
// synthesized; offline, local audio filename variants are tried in
// order. When nothing can play the failure is logged, not surfaced,
// and a silent handle is returned.
func (s *Selector) Start(label, text string, online bool) *Narration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		prev := s.active
		s.active = nil
		prev.once.Do(func() {
			if prev.cancel != nil {
				prev.cancel()
			}
		})
	}

	narration := &Narration{
		ID:  uuid.New().String(),
		sel: s,
	}

	if online && s.synth != nil && text != "" {
		stop, err := s.synth.Speak(text, func() { s.release(narration) })
		if err == nil {
			narration.Mode = ModeSpeech
			narration.cancel = stop
			s.active = narration
			return narration
		}
		log.Printf("[NARRATE] Speech synthesis failed for %q: %v", label, err)
	}

	if s.player != nil {
		variants := AudioVariants(label)
		for _, name := range variants {
			stop, err := s.player.Play(name, func() { s.release(narration) })
			if err != nil {
				continue
			}
			narration.Mode = ModeAudio
			narration.Asset = name
			narration.cancel = stop
			s.active = narration
			return narration
		}
		log.Printf("[NARRATE] No audio asset played for %q (tried %v)", label, variants)
	}

	narration.Mode = ModeNone
	return narration
}

// Active returns the currently playing narration, if any.
func (s *Selector) Active() *Narration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Selector) release(n *Narration) {
	s.mu.Lock()
	if s.active == n {
		s.active = nil
	}
	s.mu.Unlock()
}

// AudioVariants lists the candidate asset filenames for a label, in the
// order they should be tried: underscored, space-stripped, then the raw
// lowercased title.
func AudioVariants(label string) []string {
	raw := strings.ToLower(strings.TrimSpace(label))
	fields := strings.Fields(raw)

	candidates := []string{
		strings.Join(fields, "_"),
		strings.Join(fields, ""),
		raw,
	}

	seen := make(map[string]bool, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		variants = append(variants, c+".mp3")
	}
	return variants
}
