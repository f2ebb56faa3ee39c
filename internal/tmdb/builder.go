package tmdb

import (
	"context"
	"sort"
	"time"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/models"
)

// Contributor is one provider's claim on one stream of a title.
type Contributor struct {
	ProviderID string
	StreamID   string
	ProxyURL   string
}

// CatalogIndex answers which title keys already exist locally. The title
// repository satisfies it.
type CatalogIndex interface {
	ExistingKeys(ctx context.Context, keys []string) ([]string, error)
}

// BuildInput is everything needed to assemble one merged title.
type BuildInput struct {
	TMDBID int
	Type   models.ContentType
	// FallbackName names synthetic titles when TMDB has no record.
	FallbackName string
	Contributors []Contributor
	// Priorities orders stream sources, provider priority ascending.
	Priorities map[string]int
	// Catalog filters similar titles down to ones already merged locally.
	// Nil drops recommendations entirely.
	Catalog CatalogIndex
}

// BuildResult is the merged title plus its per-provider stream rows.
type BuildResult struct {
	Title   *models.Title
	Streams []models.TitleStream
	// Synthetic marks titles TMDB no longer knows; they carry only
	// provider-derived data.
	Synthetic bool
}

// BuildTitle assembles the canonical record for one (type, tmdb_id) from
// its contributing provider entries. A 404 from TMDB degrades to a
// synthetic minimal title rather than failing the merge.
func (c *Client) BuildTitle(ctx context.Context, in BuildInput) (*BuildResult, error) {
	titleKey := models.TitleKey(in.Type, in.TMDBID)
	now := time.Now().UTC()

	details, err := c.Details(ctx, in.Type, in.TMDBID)
	synthetic := false
	if err != nil {
		if apperrors.GetErrorCode(err) != apperrors.CodeNotFound {
			return nil, err
		}
		synthetic = true
		details = nil
	}

	streamIDs, contributorsByStream := groupContributors(in.Contributors)

	title := &models.Title{
		Key:         titleKey,
		Type:        in.Type,
		TMDBID:      in.TMDBID,
		Name:        in.FallbackName,
		Streams:     make(map[string]models.StreamEntry, len(streamIDs)),
		CreatedAt:   now,
		LastUpdated: now,
	}
	if details != nil {
		title.Name = details.DisplayName()
		title.ReleaseDate = details.Date()
		title.Overview = details.Overview
		title.PosterPath = details.PosterPath
		title.BackdropPath = details.BackdropPath
		title.VoteAverage = details.VoteAverage
		title.VoteCount = details.VoteCount
		title.Genres = details.GenreNames()
		title.Runtime = runtimeOf(in.Type, details)
		title.NumberOfSeasons = details.NumberOfSeasons
		title.NumberOfEpisodes = details.NumberOfEpisodes
	}

	var episodeMeta map[string]*models.EpisodeMetadata
	if in.Type == models.ContentTypeTVShows && !synthetic {
		episodeMeta = c.episodeMetadata(ctx, in.TMDBID, streamIDs)
	}
	if title.NumberOfSeasons == 0 || title.NumberOfEpisodes == 0 {
		seasons, episodes := countEpisodes(streamIDs)
		if title.NumberOfSeasons == 0 {
			title.NumberOfSeasons = seasons
		}
		if title.NumberOfEpisodes == 0 {
			title.NumberOfEpisodes = episodes
		}
	}

	streams := make([]models.TitleStream, 0, len(in.Contributors))
	for _, streamID := range streamIDs {
		contributors := contributorsByStream[streamID]
		entry := models.StreamEntry{
			Sources:         sourceList(contributors, in.Priorities),
			EpisodeMetadata: episodeMeta[streamID],
		}
		title.Streams[streamID] = entry

		seen := make(map[string]struct{}, len(contributors))
		for _, contrib := range contributors {
			if _, dup := seen[contrib.ProviderID]; dup {
				continue
			}
			seen[contrib.ProviderID] = struct{}{}
			streams = append(streams, models.TitleStream{
				Key:         models.StreamCompoundKey(in.Type, in.TMDBID, streamID, contrib.ProviderID),
				TitleKey:    titleKey,
				StreamID:    streamID,
				ProviderID:  contrib.ProviderID,
				ProxyURL:    contrib.ProxyURL,
				CreatedAt:   now,
				LastUpdated: now,
			})
		}
	}

	if !synthetic && in.Catalog != nil {
		similar, err := c.Similar(ctx, in.Type, in.TMDBID)
		if err != nil {
			if apperrors.IsCancelled(err) {
				return nil, err
			}
		} else if len(similar) > 0 {
			kept, err := in.Catalog.ExistingKeys(ctx, similar)
			if err == nil {
				title.SimilarTitles = kept
			}
		}
	}

	return &BuildResult{Title: title, Streams: streams, Synthetic: synthetic}, nil
}

// groupContributors returns the kept stream ids in stable order and the
// contributors per stream. When a series has per-episode streams, a bare
// main contribution has no episode counterpart and is dropped.
func groupContributors(contributors []Contributor) ([]string, map[string][]Contributor) {
	byStream := make(map[string][]Contributor)
	hasEpisodes := false
	for _, c := range contributors {
		byStream[c.StreamID] = append(byStream[c.StreamID], c)
		if c.StreamID != models.MainStreamID {
			hasEpisodes = true
		}
	}
	if hasEpisodes {
		delete(byStream, models.MainStreamID)
	}

	ids := make([]string, 0, len(byStream))
	for id := range byStream {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, byStream
}

// episodeMetadata fetches season details for every season present in the
// stream ids. A failed season loses only its metadata.
func (c *Client) episodeMetadata(ctx context.Context, tmdbID int, streamIDs []string) map[string]*models.EpisodeMetadata {
	seasons := make(map[int]struct{})
	for _, id := range streamIDs {
		if season, _, ok := models.ParseEpisodeStreamID(id); ok {
			seasons[season] = struct{}{}
		}
	}

	meta := make(map[string]*models.EpisodeMetadata)
	for season := range seasons {
		detail, err := c.SeasonDetails(ctx, tmdbID, season)
		if err != nil {
			c.log.WithFields(map[string]interface{}{
				"tmdb_id": tmdbID,
				"season":  season,
				"error":   err.Error(),
			}).WarnContext(ctx, "Season details unavailable")
			continue
		}
		for _, ep := range detail.Episodes {
			streamID, err := models.EpisodeStreamID(season, ep.EpisodeNumber)
			if err != nil {
				continue
			}
			meta[streamID] = &models.EpisodeMetadata{
				AirDate:   ep.AirDate,
				Name:      ep.Name,
				Overview:  ep.Overview,
				StillPath: ep.StillPath,
			}
		}
	}
	return meta
}

// sourceList orders contributing provider ids by priority ascending,
// deduplicated. Providers without a known priority sort last.
func sourceList(contributors []Contributor, priorities map[string]int) []string {
	seen := make(map[string]struct{}, len(contributors))
	sources := make([]string, 0, len(contributors))
	for _, c := range contributors {
		if _, dup := seen[c.ProviderID]; dup {
			continue
		}
		seen[c.ProviderID] = struct{}{}
		sources = append(sources, c.ProviderID)
	}
	sort.SliceStable(sources, func(i, j int) bool {
		pi, iok := priorities[sources[i]]
		pj, jok := priorities[sources[j]]
		if iok != jok {
			return iok
		}
		return pi < pj
	})
	return sources
}

func countEpisodes(streamIDs []string) (seasons, episodes int) {
	seen := make(map[int]struct{})
	for _, id := range streamIDs {
		if season, _, ok := models.ParseEpisodeStreamID(id); ok {
			episodes++
			seen[season] = struct{}{}
		}
	}
	return len(seen), episodes
}

func runtimeOf(ct models.ContentType, d *Details) *int {
	if ct == models.ContentTypeMovies {
		if d.Runtime > 0 {
			r := d.Runtime
			return &r
		}
		return nil
	}
	if len(d.EpisodeRunTime) > 0 && d.EpisodeRunTime[0] > 0 {
		r := d.EpisodeRunTime[0]
		return &r
	}
	return nil
}
