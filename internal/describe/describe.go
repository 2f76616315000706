package describe

import (
	"context"
	"log"
	"strings"

	"github.com/vineethbhatalevoor/artvista/internal/storage"
)

// DefaultDescription is returned when every other source fails; the
// user always sees some description.
const DefaultDescription = "No description available."

// NarrativeClient fetches a descriptive narrative for an artwork title
// from a remote generative-text service.
type NarrativeClient interface {
	Narrative(ctx context.Context, title string) (string, error)
}

// Resolver turns a predicted label into a displayable description:
// remote narrative when online, local story asset otherwise, fixed
// default as the last resort. It never fails.
type Resolver struct {
	client  NarrativeClient
	stories *storage.LocalStorage
}

func NewResolver(client NarrativeClient, stories *storage.LocalStorage) *Resolver {
	return &Resolver{
		client:  client,
		stories: stories,
	}
}

func (r *Resolver) Describe(ctx context.Context, label string, online bool) string {
	if online && r.client != nil {
		text, err := r.client.Narrative(ctx, label)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			log.Printf("[DESCRIBE] Narrative fetch for %q failed, using local story: %v", label, err)
		}
	}

	if r.stories != nil {
		data, err := r.stories.ReadFile(NormalizeTitle(label) + ".txt")
		if err == nil && len(data) > 0 {
			return string(data)
		}
	}

	return DefaultDescription
}

// NormalizeTitle maps an artwork title to its asset filename stem:
// lowercase with whitespace runs collapsed to underscores.
func NormalizeTitle(title string) string {
	fields := strings.Fields(strings.ToLower(title))
	return strings.Join(fields, "_")
}
