package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// ContentType represents the type of media content
type ContentType string

const (
	ContentTypeMovies  ContentType = "movies"
	ContentTypeTVShows ContentType = "tvshows"
)

// IsValid reports whether the content type is one of the known values
func (ct ContentType) IsValid() bool {
	return ct == ContentTypeMovies || ct == ContentTypeTVShows
}

// MainStreamID is the stream identifier used for movies and for providers
// that only expose a single row per series
const MainStreamID = "main"

var episodeStreamIDRegex = regexp.MustCompile(`^S(\d{2,})-E(\d{2,})$`)

// TitleKey builds the identity of a merged title
func TitleKey(ct ContentType, tmdbID int) string {
	return fmt.Sprintf("%s-%d", ct, tmdbID)
}

// ProviderTitleKey builds the identity of a provider-scoped catalog entry
func ProviderTitleKey(ct ContentType, providerID, providerItemID string) string {
	return fmt.Sprintf("%s-%s-%s", ct, providerID, providerItemID)
}

// StreamCompoundKey builds the identity of a per-(title, stream, provider) row
func StreamCompoundKey(ct ContentType, tmdbID int, streamID, providerID string) string {
	return fmt.Sprintf("%s-%d-%s-%s", ct, tmdbID, streamID, providerID)
}

// EpisodeStreamID builds a stream identifier for a series episode.
// Season and episode indexes start at 1.
func EpisodeStreamID(season, episode int) (string, error) {
	if season < 1 {
		return "", fmt.Errorf("invalid season index %d: must be >= 1", season)
	}
	if episode < 1 {
		return "", fmt.Errorf("invalid episode index %d: must be >= 1", episode)
	}
	return fmt.Sprintf("S%02d-E%02d", season, episode), nil
}

// ParseEpisodeStreamID extracts season and episode from a stream identifier.
// Returns ok=false for the main stream id and for malformed or out-of-range ids.
func ParseEpisodeStreamID(streamID string) (season, episode int, ok bool) {
	matches := episodeStreamIDRegex.FindStringSubmatch(streamID)
	if len(matches) != 3 {
		return 0, 0, false
	}
	season, _ = strconv.Atoi(matches[1])
	episode, _ = strconv.Atoi(matches[2])
	if season < 1 || episode < 1 {
		return 0, 0, false
	}
	return season, episode, true
}

// NormalizeTMDBID converts TMDB identifiers to their canonical nullable form.
// Upstream payloads use 0 to mean "no id".
func NormalizeTMDBID(id int) *int {
	if id <= 0 {
		return nil
	}
	return &id
}
