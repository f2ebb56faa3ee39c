package models

import "time"

// EpisodeMetadata is the canonical TMDB metadata attached to one episode stream
type EpisodeMetadata struct {
	AirDate   string `bson:"air_date" json:"air_date"`
	Name      string `bson:"name" json:"name"`
	Overview  string `bson:"overview" json:"overview"`
	StillPath string `bson:"still_path,omitempty" json:"still_path,omitempty"`
}

// StreamEntry records which providers can serve one stream of a title.
// Sources are deduplicated and ordered by provider priority ascending.
// EpisodeMetadata is present only for series episodes.
type StreamEntry struct {
	Sources         []string         `bson:"sources" json:"sources"`
	EpisodeMetadata *EpisodeMetadata `bson:"episode_metadata,omitempty" json:"episode_metadata,omitempty"`
}

// Title is a canonical merged catalog record keyed by TMDB id
type Title struct {
	Key              string                 `bson:"title_key" json:"title_key"`
	Type             ContentType            `bson:"type" json:"type"`
	TMDBID           int                    `bson:"tmdb_id" json:"tmdb_id"`
	Name             string                 `bson:"name" json:"name"`
	ReleaseDate      string                 `bson:"release_date" json:"release_date"`
	Overview         string                 `bson:"overview" json:"overview"`
	PosterPath       string                 `bson:"poster_path,omitempty" json:"poster_path,omitempty"`
	BackdropPath     string                 `bson:"backdrop_path,omitempty" json:"backdrop_path,omitempty"`
	VoteAverage      float64                `bson:"vote_average" json:"vote_average"`
	VoteCount        int                    `bson:"vote_count" json:"vote_count"`
	Genres           []string               `bson:"genres" json:"genres"`
	Runtime          *int                   `bson:"runtime,omitempty" json:"runtime,omitempty"`
	NumberOfSeasons  int                    `bson:"number_of_seasons,omitempty" json:"number_of_seasons,omitempty"`
	NumberOfEpisodes int                    `bson:"number_of_episodes,omitempty" json:"number_of_episodes,omitempty"`
	SimilarTitles    []string               `bson:"similar_titles,omitempty" json:"similar_titles,omitempty"`
	Streams          map[string]StreamEntry `bson:"streams" json:"streams"`
	CreatedAt        time.Time              `bson:"created_at" json:"created_at"`
	LastUpdated      time.Time              `bson:"last_updated" json:"last_updated"`
}

// CollectionName specifies the document collection for Title
func (Title) CollectionName() string {
	return "titles"
}
