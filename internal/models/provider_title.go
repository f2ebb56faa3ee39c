package models

import "time"

// IgnoredReasonNoMatch marks entries that could not be resolved against TMDB
const IgnoredReasonNoMatch = "no_tmdb_match"

// EpisodeRef is one episode exposed by a provider for a series entry
type EpisodeRef struct {
	StreamID string `bson:"stream_id" json:"stream_id"`
	Season   int    `bson:"season" json:"season"`
	Episode  int    `bson:"episode" json:"episode"`
}

// ProviderTitle is one entry of a provider's catalog. Entries removed from
// upstream are kept in place until an administrative purge.
type ProviderTitle struct {
	Key            string       `bson:"provider_title_key" json:"provider_title_key"`
	ProviderID     string       `bson:"provider_id" json:"provider_id"`
	Type           ContentType  `bson:"type" json:"type"`
	ProviderItemID string       `bson:"provider_item_id" json:"provider_item_id"`
	Name           string       `bson:"name" json:"name"`
	Year           *int         `bson:"year,omitempty" json:"year,omitempty"`
	CategoryID     string       `bson:"category_id" json:"category_id"`
	TMDBID         *int         `bson:"tmdb_id,omitempty" json:"tmdb_id,omitempty"`
	IMDBID         *string      `bson:"imdb_id,omitempty" json:"imdb_id,omitempty"`
	Ignored        bool         `bson:"ignored" json:"ignored"`
	IgnoredReason  *string      `bson:"ignored_reason,omitempty" json:"ignored_reason,omitempty"`
	Episodes       []EpisodeRef `bson:"episodes,omitempty" json:"episodes,omitempty"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
	LastUpdated    time.Time    `bson:"last_updated" json:"last_updated"`
}

// CollectionName specifies the document collection for ProviderTitle
func (ProviderTitle) CollectionName() string {
	return "provider_titles"
}

// TitleKey returns the merged-title identity this entry contributes to,
// or "" when the entry has not been matched yet
func (pt *ProviderTitle) TitleKey() string {
	if pt.TMDBID == nil {
		return ""
	}
	return TitleKey(pt.Type, *pt.TMDBID)
}

// StreamIDs returns the stream identifiers this entry contributes. Movies and
// series without per-episode data contribute the main stream.
func (pt *ProviderTitle) StreamIDs() []string {
	if pt.Type == ContentTypeMovies || len(pt.Episodes) == 0 {
		return []string{MainStreamID}
	}
	ids := make([]string, 0, len(pt.Episodes))
	for _, ep := range pt.Episodes {
		ids = append(ids, ep.StreamID)
	}
	return ids
}

// MarkIgnored flags the entry as unmatchable with the given reason
func (pt *ProviderTitle) MarkIgnored(reason string) {
	pt.Ignored = true
	pt.IgnoredReason = &reason
}

// ContentChanged reports whether the fields driving TMDB matching differ
// between two snapshots of the same entry
func (pt *ProviderTitle) ContentChanged(prev *ProviderTitle) bool {
	if prev == nil {
		return true
	}
	if pt.Name != prev.Name || pt.CategoryID != prev.CategoryID {
		return true
	}
	if (pt.Year == nil) != (prev.Year == nil) {
		return true
	}
	if pt.Year != nil && prev.Year != nil && *pt.Year != *prev.Year {
		return true
	}
	return false
}
