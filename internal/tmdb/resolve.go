package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/models"
)

// nameMatchScore and yearMatchScore weight the candidate ranking. A
// candidate below matchThreshold is no match: the name must agree.
const (
	nameMatchScore = 2
	yearMatchScore = 1
	matchThreshold = 2
)

// Resolve matches a provider entry to a TMDB id. A nil id with a nil
// error means no acceptable match exists.
func (c *Client) Resolve(ctx context.Context, pt *models.ProviderTitle) (*int, error) {
	if pt.IMDBID != nil && *pt.IMDBID != "" {
		id, err := c.findByIMDB(ctx, pt.Type, *pt.IMDBID)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}
	return c.search(ctx, pt)
}

func (c *Client) findByIMDB(ctx context.Context, ct models.ContentType, imdbID string) (*int, error) {
	var resp findResponse
	endpoint := "find-" + imdbID
	params := url.Values{"external_source": {"imdb_id"}}
	if err := c.get(ctx, ct, endpoint, "/find/"+url.PathEscape(imdbID), params, searchTTL, &resp); err != nil {
		if apperrors.GetErrorCode(err) == apperrors.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}

	results := resp.MovieResults
	if ct == models.ContentTypeTVShows {
		results = resp.TVResults
	}
	if len(results) == 0 {
		return nil, nil
	}
	return models.NormalizeTMDBID(results[0].ID), nil
}

func (c *Client) search(ctx context.Context, pt *models.ProviderTitle) (*int, error) {
	params := url.Values{"query": {pt.Name}}
	if pt.Year != nil {
		if pt.Type == models.ContentTypeMovies {
			params.Set("year", fmt.Sprint(*pt.Year))
		} else {
			params.Set("first_air_date_year", fmt.Sprint(*pt.Year))
		}
	}

	var resp searchResponse
	endpoint := "search"
	path := "/search/" + pathType(pt.Type)
	if err := c.get(ctx, pt.Type, endpoint, path, params, searchTTL, &resp); err != nil {
		if apperrors.GetErrorCode(err) == apperrors.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}

	best := pickBest(resp.Results, pt.Name, pt.Year)
	if best == nil {
		return nil, nil
	}
	return models.NormalizeTMDBID(best.ID), nil
}

// pickBest scores candidates by exact normalized name match plus year
// equality, tie-breaking on popularity.
func pickBest(candidates []searchResult, name string, year *int) *searchResult {
	wanted := normalizeName(name)
	var best *searchResult
	bestScore := 0

	for i := range candidates {
		cand := &candidates[i]
		score := 0
		if normalizeName(cand.displayName()) == wanted {
			score += nameMatchScore
		}
		if year != nil && cand.year() == *year {
			score += yearMatchScore
		}
		if score < matchThreshold {
			continue
		}
		if best == nil || score > bestScore ||
			(score == bestScore && cand.Popularity > best.Popularity) {
			best = cand
			bestScore = score
		}
	}
	return best
}

// normalizeName lowercases and strips everything but letters and digits so
// punctuation and spacing differences do not break exact matching.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
