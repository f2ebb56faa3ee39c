package provider

import (
	"context"
	"sync"
	"time"

	"github.com/glefebvre/streamhub/internal/models"
)

// WorkingSet holds a handler's in-memory snapshot of provider titles.
// Handlers embed it to satisfy the load/get/unload capabilities.
type WorkingSet struct {
	mu     sync.RWMutex
	titles []models.ProviderTitle
}

// Load replaces the working set with the store's entries for the provider,
// both content types. A repeated load takes a fresh snapshot rather than
// appending to the previous one.
func (ws *WorkingSet) Load(ctx context.Context, store TitleStore, providerID string, since *time.Time, includeIgnored bool) error {
	var titles []models.ProviderTitle
	for _, ct := range []models.ContentType{models.ContentTypeMovies, models.ContentTypeTVShows} {
		batch, err := store.GetByProvider(ctx, providerID, ct, since, includeIgnored)
		if err != nil {
			return err
		}
		titles = append(titles, batch...)
	}
	ws.mu.Lock()
	ws.titles = titles
	ws.mu.Unlock()
	return nil
}

// All returns a copy of the working set.
func (ws *WorkingSet) All() []models.ProviderTitle {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	out := make([]models.ProviderTitle, len(ws.titles))
	copy(out, ws.titles)
	return out
}

// Clear drops the working set.
func (ws *WorkingSet) Clear() {
	ws.mu.Lock()
	ws.titles = nil
	ws.mu.Unlock()
}
