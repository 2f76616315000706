package narration

import (
	"fmt"
	"log"

	"github.com/vineethbhatalevoor/artvista/internal/storage"
)

// AssetPlayer resolves narration assets against local storage. The
// actual audio output device is an external collaborator; this player
// verifies the asset is present and readable and logs the playback.
// Completion is signaled only by Stop, never spontaneously.
type AssetPlayer struct {
	assets *storage.LocalStorage
}

func NewAssetPlayer(assets *storage.LocalStorage) *AssetPlayer {
	return &AssetPlayer{assets: assets}
}

func (p *AssetPlayer) Play(name string, done func()) (func(), error) {
	if !p.assets.Exists(name) {
		return nil, fmt.Errorf("audio asset %q not found", name)
	}

	file, err := p.assets.OpenFile(name)
	if err != nil {
		return nil, err
	}
	file.Close()

	log.Printf("[NARRATE] Playing audio asset %s", name)
	return func() {}, nil
}
