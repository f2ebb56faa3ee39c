package provider

import (
	"time"

	"github.com/glefebvre/streamhub/internal/models"
)

// CategoryEnabled reports whether a category participates in ingestion.
// An empty enabled list means every category is ingested.
func CategoryEnabled(enabled []string, categoryID string) bool {
	if len(enabled) == 0 {
		return true
	}
	for _, id := range enabled {
		if id == categoryID {
			return true
		}
	}
	return false
}

// Reconcile folds freshly scanned entries into their stored counterparts
// and returns only the entries that need writing. Match state survives a
// rescan: tmdb_id, imdb_id and the ignored flags carry over unless the
// name, year or category changed upstream, in which case the entry is
// reset for re-matching. Unchanged entries are left untouched so their
// last_updated stays behind the sync watermark.
func Reconcile(fresh []models.ProviderTitle, existing []models.ProviderTitle, now time.Time) []models.ProviderTitle {
	byKey := make(map[string]*models.ProviderTitle, len(existing))
	for i := range existing {
		byKey[existing[i].Key] = &existing[i]
	}

	changed := make([]models.ProviderTitle, 0)
	for _, entry := range fresh {
		prev, ok := byKey[entry.Key]
		if !ok {
			entry.CreatedAt = now
			entry.LastUpdated = now
			changed = append(changed, entry)
			continue
		}

		entry.CreatedAt = prev.CreatedAt
		if entry.ContentChanged(prev) {
			entry.LastUpdated = now
			changed = append(changed, entry)
			continue
		}

		// Identity fields are unchanged. Episodes may still grow when a
		// series gains entries upstream.
		if !episodesEqual(entry.Episodes, prev.Episodes) {
			entry.TMDBID = prev.TMDBID
			entry.IMDBID = prev.IMDBID
			entry.Ignored = prev.Ignored
			entry.IgnoredReason = prev.IgnoredReason
			entry.LastUpdated = now
			changed = append(changed, entry)
		}
	}
	return changed
}

func episodesEqual(a, b []models.EpisodeRef) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]models.EpisodeRef, len(a))
	for _, ep := range a {
		seen[ep.StreamID] = ep
	}
	for _, ep := range b {
		if other, ok := seen[ep.StreamID]; !ok || other != ep {
			return false
		}
	}
	return true
}
